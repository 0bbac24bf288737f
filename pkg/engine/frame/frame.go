// Package frame implements RPC record marking over a byte stream.
//
// Each fragment starts with a 4-byte big-endian header. The high bit marks
// the last fragment of a message and the low 31 bits carry the fragment
// length. A message is the concatenation of its fragments.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/rpcwarden/pkg/bufpool"
)

const (
	headerSize = 4
	lastFlag   = uint32(1) << 31
	lengthMask = lastFlag - 1

	// MaxFragmentLength is the largest length a single header can carry.
	MaxFragmentLength = int(lengthMask)
)

// ErrFrameTooLarge is returned when a message exceeds the reader's limit.
var ErrFrameTooLarge = errors.New("frame too large")

// Header is a decoded fragment header.
type Header struct {
	Last   bool
	Length uint32
}

// Encode returns the wire form of h.
func (h Header) Encode() [headerSize]byte {
	var b [headerSize]byte
	v := h.Length & lengthMask
	if h.Last {
		v |= lastFlag
	}
	binary.BigEndian.PutUint32(b[:], v)
	return b
}

// ReadHeader reads one fragment header. A clean EOF before any byte is
// returned as io.EOF.
func ReadHeader(r io.Reader) (Header, error) {
	var b [headerSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, err
	}
	v := binary.BigEndian.Uint32(b[:])
	return Header{Last: v&lastFlag != 0, Length: v & lengthMask}, nil
}

// ReadMessage reads fragments until the last one and returns the assembled
// payload. The payload is drawn from bufpool; callers may hand it back with
// bufpool.Put once done. Messages longer than limit bytes fail with
// ErrFrameTooLarge; limit <= 0 disables it.
func ReadMessage(r io.Reader, limit int) ([]byte, error) {
	var msg []byte
	for {
		h, err := ReadHeader(r)
		if err != nil {
			bufpool.Put(msg)
			if len(msg) > 0 && errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		total := len(msg) + int(h.Length)
		if limit > 0 && total > limit {
			bufpool.Put(msg)
			return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFrameTooLarge, total, limit)
		}

		msg = grow(msg, total)
		if _, err := io.ReadFull(r, msg[total-int(h.Length):total]); err != nil {
			bufpool.Put(msg)
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		if h.Last {
			if msg == nil {
				msg = bufpool.Get(0)
			}
			return msg, nil
		}
	}
}

// grow extends msg to length n, moving to a larger pooled buffer when needed.
func grow(msg []byte, n int) []byte {
	if n <= cap(msg) {
		return msg[:n]
	}
	next := bufpool.Get(n)
	copy(next, msg)
	bufpool.Put(msg)
	return next
}

// WriteMessage writes payload as a single last fragment.
func WriteMessage(w io.Writer, payload []byte) error {
	if len(payload) > MaxFragmentLength {
		return fmt.Errorf("%w: %d bytes exceeds fragment limit", ErrFrameTooLarge, len(payload))
	}

	buf := bufpool.Get(headerSize + len(payload))
	defer bufpool.Put(buf)

	hdr := Header{Last: true, Length: uint32(len(payload))}.Encode()
	copy(buf, hdr[:])
	copy(buf[headerSize:], payload)

	_, err := w.Write(buf)
	return err
}

// WriteFragments writes payload split into fragments of at most size bytes.
// It exists mainly for peers and tests that exercise reassembly.
func WriteFragments(w io.Writer, payload []byte, size int) error {
	if size <= 0 || size > MaxFragmentLength {
		size = MaxFragmentLength
	}
	for {
		n := min(len(payload), size)
		last := n == len(payload)

		hdr := Header{Last: last, Length: uint32(n)}.Encode()
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(payload[:n]); err != nil {
			return err
		}
		if last {
			return nil
		}
		payload = payload[n:]
	}
}
