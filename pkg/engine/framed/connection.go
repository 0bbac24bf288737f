package framed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/marmos91/rpcwarden/internal/bytesize"
	"github.com/marmos91/rpcwarden/internal/logger"
	"github.com/marmos91/rpcwarden/internal/telemetry"
	"github.com/marmos91/rpcwarden/pkg/bufpool"
	"github.com/marmos91/rpcwarden/pkg/engine/frame"
	"go.opentelemetry.io/otel/codes"
)

type connection struct {
	engine *Engine
	conn   net.Conn
}

// Serve reads and answers calls until the peer disconnects, a timeout
// fires, a framing error occurs or the engine stops.
func (c *connection) Serve(ctx context.Context) {
	addr := c.conn.RemoteAddr().String()
	timeouts := c.engine.cfg.Timeouts

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.engine.ShutdownRequested():
			return
		default:
		}

		if timeouts.Idle > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(timeouts.Idle))
		} else {
			_ = c.conn.SetReadDeadline(time.Time{})
		}

		// Stop may have interrupted reads before the deadline above replaced it.
		select {
		case <-c.engine.ShutdownRequested():
			return
		default:
		}

		msg, err := c.readMessage(timeouts.Read)
		if err != nil {
			c.logReadError(addr, err)
			return
		}

		reply := c.dispatch(ctx, addr, msg)
		bufpool.Put(msg)

		if err := c.writeReply(reply, timeouts.Write); err != nil {
			logger.Debug("Error writing reply", logger.KeyClientAddr, addr, logger.KeyError, err)
			return
		}
	}
}

// readMessage waits for the first header byte under the idle deadline, then
// reads the remainder under the read deadline.
func (c *connection) readMessage(readTimeout time.Duration) ([]byte, error) {
	var first [1]byte
	if _, err := io.ReadFull(c.conn, first[:]); err != nil {
		return nil, err
	}
	if readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
	return frame.ReadMessage(io.MultiReader(bytes.NewReader(first[:]), c.conn), c.engine.cfg.MaxFrameSize)
}

func (c *connection) logReadError(addr string, err error) {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("Connection closed by client", logger.KeyClientAddr, addr)
	case errors.As(err, &ne) && ne.Timeout():
		logger.Debug("Connection timed out", logger.KeyClientAddr, addr)
	case errors.Is(err, frame.ErrFrameTooLarge):
		logger.Warn("Request exceeds max frame size", logger.KeyClientAddr, addr,
			"max", bytesize.ByteSize(c.engine.cfg.MaxFrameSize), logger.KeyError, err)
	default:
		logger.Debug("Error reading request", logger.KeyClientAddr, addr, logger.KeyError, err)
	}
}

// dispatch decodes msg, runs the handler and builds the reply. It never
// returns nil.
func (c *connection) dispatch(ctx context.Context, addr string, msg []byte) *Reply {
	start := time.Now()

	call, err := DecodeCall(msg)
	if err != nil {
		c.record("", start, len(msg), 0, true)
		return &Reply{Status: StatusDecodeError, Message: err.Error()}
	}

	ctx, span := telemetry.StartRPCSpan(ctx, call.Method, call.XID, telemetry.ClientAddr(addr))
	defer span.End()

	reply := c.invoke(ctx, call)
	telemetry.SetAttributes(ctx, telemetry.RPCStatus(reply.Status))
	if reply.Status != StatusOK {
		telemetry.SetStatus(ctx, codes.Error, reply.Message)
	}

	c.record(call.Method, start, len(msg), len(reply.Body), reply.Status != StatusOK)
	logger.Debug("Call handled",
		logger.KeyMethod, call.Method,
		logger.KeyXID, fmt.Sprintf("0x%x", call.XID),
		logger.KeyStatus, StatusText(reply.Status),
		logger.KeyDurationMs, logger.Duration(start))
	return reply
}

func (c *connection) invoke(ctx context.Context, call *Call) (reply *Reply) {
	reply = &Reply{XID: call.XID}

	h, ok := c.engine.mux.Lookup(call.Method)
	if !ok {
		reply.Status = StatusUnknownMethod
		reply.Message = fmt.Sprintf("unknown method %q", call.Method)
		return reply
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Panic in handler",
				logger.KeyMethod, call.Method,
				logger.KeyXID, fmt.Sprintf("0x%x", call.XID),
				"panic", p,
				"stack", string(debug.Stack()))
			reply.Status = StatusHandlerError
			reply.Message = "internal error"
			reply.Body = nil
		}
	}()

	body, err := h(ctx, call.Body)
	if err != nil {
		reply.Status = StatusHandlerError
		reply.Message = err.Error()
		return reply
	}
	reply.Body = body
	return reply
}

func (c *connection) record(method string, start time.Time, in, out int, failed bool) {
	if c.engine.stats == nil {
		return
	}
	if method == "" {
		method = "<invalid>"
	}
	c.engine.stats.RecordRequest(method, time.Since(start), in, out, failed)
}

func (c *connection) writeReply(reply *Reply, writeTimeout time.Duration) error {
	data, err := EncodeReply(reply)
	if err != nil {
		return err
	}
	if writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return frame.WriteMessage(c.conn, data)
}
