package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/rpcwarden/internal/cli/output"
	"github.com/marmos91/rpcwarden/pkg/config"
	"github.com/marmos91/rpcwarden/pkg/engine/framed"
	"github.com/marmos91/rpcwarden/pkg/stats"
	"github.com/spf13/cobra"
)

var statsOutput string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show request statistics of a running engine",
	Long: `Fetch the statistics snapshot of a running engine.

framed engines answer the "stats" call and HTTP engines GET /stats. gRPC
engines expose their statistics through the metrics server's /stats.

Examples:
  rpcwarden stats
  rpcwarden stats --output json`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statsOutput)
	if err != nil {
		return err
	}

	cfg, addr, err := clientTarget()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
	defer cancel()

	var raw []byte
	switch cfg.Engine.Type {
	case config.EngineFramed:
		raw, err = framedStats(ctx, addr)
	case config.EngineHTTP:
		raw, err = httpGet(ctx, "http://"+addr+"/stats")
	default:
		if !cfg.Metrics.Enabled {
			return fmt.Errorf("%s engines report stats through the metrics server; enable metrics", cfg.Engine.Type)
		}
		raw, err = httpGet(ctx, "http://"+dialAddress(config.EngineConfig{
			BindAddress: cfg.Metrics.BindAddress,
			Port:        cfg.Metrics.Port,
		})+"/stats")
	}
	if err != nil {
		return fmt.Errorf("stats %s: %w", addr, err)
	}

	var snap stats.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("failed to decode stats: %w", err)
	}

	if format != output.FormatTable {
		return output.Print(cmd.OutOrStdout(), format, snap)
	}

	w := cmd.OutOrStdout()
	if err := output.PrintKeyValues(w, summaryPairs(snap)); err != nil {
		return err
	}
	if len(snap.Methods) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	return output.PrintTable(w, methodTable(snap.Methods))
}

func framedStats(ctx context.Context, addr string) ([]byte, error) {
	client, err := framed.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()
	return client.Call(ctx, framed.MethodStats, nil)
}

func summaryPairs(s stats.Snapshot) [][2]string {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	return [][2]string{
		{"Uptime", (time.Duration(s.UptimeSeconds * float64(time.Second))).Round(time.Second).String()},
		{"Requests", u(s.Requests)},
		{"Errors", u(s.Errors)},
		{"Bytes in", u(s.BytesIn)},
		{"Bytes out", u(s.BytesOut)},
		{"Connections accepted", u(s.ConnsAccepted)},
		{"Connections closed", u(s.ConnsClosed)},
		{"Connections force-closed", u(s.ConnsForceClosed)},
		{"Active connections", strconv.FormatInt(s.ActiveConnections, 10)},
	}
}

func methodTable(methods []stats.MethodSnapshot) *output.Table {
	t := output.NewTable("method", "calls", "errors", "avg ms", "max ms")
	for _, m := range methods {
		t.AddRow(m.Method,
			strconv.FormatUint(m.Calls, 10),
			strconv.FormatUint(m.Errors, 10),
			strconv.FormatFloat(m.AvgMillis, 'f', 3, 64),
			strconv.FormatFloat(m.MaxMillis, 'f', 3, 64))
	}
	return t
}
