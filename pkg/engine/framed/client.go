package framed

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/rpcwarden/pkg/bufpool"
	"github.com/marmos91/rpcwarden/pkg/engine/frame"
)

// DefaultMaxReplySize limits replies accepted by a Client.
const DefaultMaxReplySize = 16 << 20

// Client issues calls to a framed engine over one connection. Calls are
// serialized; a Client is safe for concurrent use.
type Client struct {
	conn         net.Conn
	mu           sync.Mutex
	xid          atomic.Uint32
	MaxReplySize int
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	c := &Client{conn: conn, MaxReplySize: DefaultMaxReplySize}
	c.xid.Store(uint32(time.Now().UnixNano()))
	return c
}

// Call sends body to method and returns the reply body. ctx's deadline, if
// any, bounds the round trip. A non-OK reply is returned as *RemoteError.
func (c *Client) Call(ctx context.Context, method string, body []byte) ([]byte, error) {
	xid := c.xid.Add(1)
	req, err := EncodeCall(&Call{XID: xid, Method: method, Body: body})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := frame.WriteMessage(c.conn, req); err != nil {
		return nil, c.ctxErr(ctx, fmt.Errorf("send %s: %w", method, err))
	}

	msg, err := frame.ReadMessage(c.conn, c.MaxReplySize)
	if err != nil {
		return nil, c.ctxErr(ctx, fmt.Errorf("receive %s: %w", method, err))
	}
	defer bufpool.Put(msg)

	reply, err := DecodeReply(msg)
	if err != nil {
		return nil, err
	}
	if reply.XID != xid {
		return nil, fmt.Errorf("reply xid 0x%x does not match call 0x%x", reply.XID, xid)
	}
	if reply.Status != StatusOK {
		return nil, &RemoteError{Method: method, Status: reply.Status, Message: reply.Message}
	}
	return reply.Body, nil
}

// ctxErr attributes an I/O failure to ctx when ctx is done or its deadline,
// which is also the connection deadline, has passed.
func (c *Client) ctxErr(ctx context.Context, err error) error {
	ctxErr := ctx.Err()
	if d, ok := ctx.Deadline(); ctxErr == nil && ok && !time.Now().Before(d) {
		ctxErr = context.DeadlineExceeded
	}
	if ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

// Ping calls the built-in ping method and returns the round-trip time.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	body, err := c.Call(ctx, MethodPing, nil)
	if err != nil {
		return 0, err
	}
	if string(body) != "pong" {
		return 0, fmt.Errorf("unexpected ping reply %q", body)
	}
	return time.Since(start), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
