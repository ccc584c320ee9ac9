// Package wire frames lobby messages on a byte stream.
//
// Every frame is a 4-byte big-endian payload length followed by that many
// bytes of JSON:
//
//	+--------+--------+--------+--------+------------...
//	|         length (uint32)           | JSON payload
//	+--------+--------+--------+--------+------------...
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/goccy/go-json"
)

const (
	HeaderSize = 4
	// MaxFrameSize bounds a single payload. It comfortably fits one artifact
	// chunk plus its envelope.
	MaxFrameSize = 4 << 20
)

// ErrFrameTooLarge is yielded when a header announces more than MaxFrameSize
// bytes. The stream cannot be resynchronized after it.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// FramingError reports a complete frame whose payload could not be decoded.
// The frame has already been consumed; reading may continue.
type FramingError struct {
	Size int
	Err  error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("wire: corrupt frame of %d bytes: %v", e.Size, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// Encode returns v as a single frame.
func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// Write encodes v and writes it with one call to w.Write.
func Write(w io.Writer, v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// Receive decodes frames from r until it is exhausted. A corrupt payload is
// yielded as a *FramingError and decoding carries on with the next frame. EOF,
// including EOF in the middle of a frame, ends the sequence without an error;
// any other read error is yielded once before the sequence ends.
func Receive[T any](r io.Reader) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		br := bufio.NewReader(r)
		header := make([]byte, HeaderSize)
		for {
			var zero T
			if _, err := io.ReadFull(br, header); err != nil {
				if !isEOF(err) {
					yield(zero, err)
				}
				return
			}

			n := binary.BigEndian.Uint32(header)
			if n > MaxFrameSize {
				yield(zero, ErrFrameTooLarge)
				return
			}

			payload := make([]byte, n)
			if _, err := io.ReadFull(br, payload); err != nil {
				if !isEOF(err) {
					yield(zero, err)
				}
				return
			}

			var msg T
			if err := json.Unmarshal(payload, &msg); err != nil {
				if !yield(zero, &FramingError{Size: int(n), Err: err}) {
					return
				}
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
