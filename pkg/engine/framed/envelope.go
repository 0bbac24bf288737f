package framed

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Reply status codes.
const (
	StatusOK            uint32 = 0
	StatusUnknownMethod uint32 = 1
	StatusHandlerError  uint32 = 2
	StatusDecodeError   uint32 = 3
)

// StatusText returns a short name for a reply status.
func StatusText(status uint32) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusUnknownMethod:
		return "unknown_method"
	case StatusHandlerError:
		return "handler_error"
	case StatusDecodeError:
		return "decode_error"
	default:
		return fmt.Sprintf("status_%d", status)
	}
}

// Call is the XDR request envelope.
type Call struct {
	XID    uint32
	Method string
	Body   []byte
}

// Reply is the XDR response envelope.
type Reply struct {
	XID     uint32
	Status  uint32
	Message string
	Body    []byte
}

// EncodeCall serializes a call envelope.
func EncodeCall(c *Call) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, c); err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCall parses a call envelope. Declared string and opaque lengths are
// capped at len(data), so a bogus length fails before anything is allocated.
func DecodeCall(data []byte) (*Call, error) {
	var c Call
	if _, err := xdr.UnmarshalLimited(bytes.NewReader(data), &c, decodeLimit(data)); err != nil {
		return nil, fmt.Errorf("decode call: %w", err)
	}
	return &c, nil
}

// EncodeReply serializes a reply envelope.
func EncodeReply(r *Reply) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, r); err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReply parses a reply envelope.
func DecodeReply(data []byte) (*Reply, error) {
	var r Reply
	if _, err := xdr.UnmarshalLimited(bytes.NewReader(data), &r, decodeLimit(data)); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &r, nil
}

// decodeLimit bounds every variable-length field by the message size. go-xdr
// treats a zero limit as unlimited, so empty input gets a limit of one byte.
func decodeLimit(data []byte) uint {
	return uint(max(len(data), 1))
}

// RemoteError is returned by Client.Call for a non-OK reply.
type RemoteError struct {
	Method  string
	Status  uint32
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Method, StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %s: %s", e.Method, StatusText(e.Status), e.Message)
}
