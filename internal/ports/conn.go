package ports

import "context"

// FrameType distinguishes text and binary frames.
type FrameType int

const (
	TextFrame FrameType = iota + 1
	BinaryFrame
)

// String returns a human-readable representation of the frame type.
func (t FrameType) String() string {
	switch t {
	case TextFrame:
		return "text"
	case BinaryFrame:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one discrete message delivered over the transport.
type Frame struct {
	Type FrameType
	Data []byte
}

// Text returns the payload interpreted as ASCII text, regardless of type.
// The device answers status codes in binary frames.
func (f Frame) Text() string {
	return string(f.Data)
}

// Conn is an established message-based socket.
// ReadFrame is called from a single goroutine; WriteFrame calls are
// serialised by the caller. Close may be called concurrently with both.
type Conn interface {
	ReadFrame() (Frame, error)
	WriteFrame(f Frame) error
	Close() error
}

// Dialer opens a Conn to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}
