// Package protocol frames structured messages over a reliable byte stream.
// Each frame is a 4-byte big-endian length prefix followed by a JSON body;
// the codec knows nothing about game semantics.
package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

const headerSize = 4

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
)

// Conn is one peer's message stream. Implementations must allow concurrent
// Send calls: pairing notifications and broadcasts are written by other
// sessions' goroutines.
type Conn interface {
	Send(msg *Message) error
	Receive() (*Message, error)
	Close() error
}

// Codec frames messages over an io.ReadWriter.
type Codec struct {
	reader   *bufio.Reader
	writer   *bufio.Writer
	maxFrame int

	writeMu sync.Mutex
}

func NewCodec(rw io.ReadWriter, maxFrame int) *Codec {
	return &Codec{
		reader:   bufio.NewReader(rw),
		writer:   bufio.NewWriter(rw),
		maxFrame: maxFrame,
	}
}

// Send - serializes the message and writes it as one atomic frame.
func (that *Codec) Send(msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if len(body) > that.maxFrame {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header, uint32(len(body)))

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if _, err = that.writer.Write(header); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}

	if _, err = that.writer.Write(body); err != nil {
		return fmt.Errorf("failed to write frame body: %w", err)
	}

	if err = that.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush frame: %w", err)
	}

	return nil
}

// Receive - blocks until one complete frame arrives and decodes it. A clean
// peer close at a frame boundary is reported as io.EOF; a close mid-frame,
// an oversized frame, or an undecodable body is a protocol error. Callers
// treat every error here as the end of the session.
func (that *Codec) Receive() (*Message, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(that.reader, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		return nil, fmt.Errorf("%w: truncated header: %w", ErrMalformedFrame, err)
	}

	// Compare in int64: a length above 2^31 must not wrap negative on
	// 32-bit platforms and slip past the guard.
	length := binary.BigEndian.Uint32(header)
	if int64(length) > int64(that.maxFrame) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(that.reader, body); err != nil {
		return nil, fmt.Errorf("%w: truncated body: %w", ErrMalformedFrame, err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	return &msg, nil
}

// StreamConn couples a codec with the underlying net.Conn so the session
// owns exactly one handle it can close, exactly once.
type StreamConn struct {
	*Codec

	raw       net.Conn
	closeOnce sync.Once
	closeErr  error
}

func NewStreamConn(raw net.Conn, maxFrame int) *StreamConn {
	return &StreamConn{
		Codec: NewCodec(raw, maxFrame),
		raw:   raw,
	}
}

func (that *StreamConn) Close() error {
	that.closeOnce.Do(func() {
		that.closeErr = that.raw.Close()
	})

	return that.closeErr
}
