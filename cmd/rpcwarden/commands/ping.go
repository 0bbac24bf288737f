package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marmos91/rpcwarden/pkg/config"
	"github.com/marmos91/rpcwarden/pkg/engine/framed"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	clientAddress string
	clientTimeout time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the configured engine answers",
	Long: `Send one liveness request to the engine described by the configuration.

framed engines receive a "ping" call, gRPC engines a health check and HTTP
engines a GET /healthz.

Examples:
  rpcwarden ping
  rpcwarden ping --address 10.0.0.5:4520`,
	RunE: runPing,
}

func init() {
	for _, c := range []*cobra.Command{pingCmd, statsCmd} {
		c.Flags().StringVarP(&clientAddress, "address", "a", "", "Engine address host:port (default: from config)")
		c.Flags().DurationVar(&clientTimeout, "timeout", 5*time.Second, "Request timeout")
	}
}

// clientTarget loads the configuration and resolves the address to dial.
func clientTarget() (*config.Config, string, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, "", err
	}
	addr := clientAddress
	if addr == "" {
		addr = dialAddress(cfg.Engine)
	}
	return cfg, addr, nil
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, addr, err := clientTarget()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
	defer cancel()

	start := time.Now()
	switch cfg.Engine.Type {
	case config.EngineFramed:
		err = pingFramed(ctx, addr)
	case config.EngineGRPC:
		err = pingGRPC(ctx, addr)
	case config.EngineHTTP:
		_, err = httpGet(ctx, "http://"+addr+"/healthz")
	default:
		err = fmt.Errorf("unknown engine type %q", cfg.Engine.Type)
	}
	if err != nil {
		return fmt.Errorf("ping %s: %w", addr, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s engine at %s is serving (%s)\n",
		cfg.Engine.Type, addr, time.Since(start).Round(time.Microsecond))
	return nil
}

func pingFramed(ctx context.Context, addr string) error {
	client, err := framed.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	_, err = client.Ping(ctx)
	return err
}

func pingGRPC(ctx context.Context, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health status %s", resp.GetStatus())
	}
	return nil
}

func httpGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return body, nil
}
