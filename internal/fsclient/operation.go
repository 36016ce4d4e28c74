package fsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
	"github.com/wateringctl/wateringctl/internal/progress"
)

// operation is the content of the pending slot.
type operation struct {
	cmd     domain.Command
	variant variant
	task    progress.TaskID
	done    chan result

	fixed time.Duration
	idle  time.Duration
	guard *time.Timer
	gen   uint64

	// cooperative operations only notice cancellation between frames.
	cooperative bool
	cancelled   bool
}

type result struct {
	entries []domain.Entry
	data    []byte
	err     error
}

// variant holds the per-operation accumulator and decodes inbound frames.
// frame runs with c.mu held.
type variant interface {
	frame(c *Client, op *operation, f ports.Frame) (done bool, res result)
}

// starter is implemented by variants that publish progress when issued.
type starter interface {
	start(c *Client)
}

// listOp expects one JSON listing, or a status code.
type listOp struct{}

func (listOp) frame(_ *Client, op *operation, f ports.Frame) (bool, result) {
	body := bytes.TrimSpace(bytes.TrimRight(f.Data, "\x00"))
	if len(body) == 0 || body[0] != '{' {
		return true, result{err: statusErr(op, f)}
	}
	var listing domain.Listing
	if err := json.Unmarshal(body, &listing); err != nil {
		return true, result{err: fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)}
	}
	if listing.Items == nil {
		listing.Items = []domain.Entry{}
	}
	return true, result{entries: listing.Items}
}

// readOp expects a STATUS;size header followed by raw chunks. Chunks carry
// no offset; completion is length equality only.
type readOp struct {
	size int64
	buf  []byte
	last int
}

func (r *readOp) start(c *Client) {
	c.report(0)
}

func (r *readOp) frame(c *Client, op *operation, f ports.Frame) (bool, result) {
	if r.size < 0 {
		return r.header(c, op, f)
	}

	r.buf = append(r.buf, f.Data...)
	got := int64(len(r.buf))
	if got > r.size {
		return true, result{err: fmt.Errorf("%w: got %d of %d bytes", domain.ErrLengthOverrun, got, r.size)}
	}
	if pct := int(got * 100 / r.size); pct != r.last {
		r.last = pct
		c.report(pct)
	}
	if got == r.size {
		return true, result{data: r.buf}
	}
	return false, result{}
}

// maxPrealloc bounds the download buffer allocated up front.
const maxPrealloc = 64 << 10

func (r *readOp) header(c *Client, op *operation, f ports.Frame) (bool, result) {
	text := statusText(f)
	code, rest, found := strings.Cut(text, domain.Delimiter)
	if domain.Status(code) != domain.StatusFileFound {
		return true, result{err: &domain.StatusError{Op: op.cmd.Verb, Code: domain.Status(code)}}
	}
	if !found {
		return true, result{err: fmt.Errorf("%w: header %q has no size", domain.ErrMalformedPayload, text)}
	}
	size, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil || size < 0 {
		return true, result{err: fmt.Errorf("%w: header %q", domain.ErrMalformedPayload, text)}
	}

	r.size = size
	if size == 0 {
		c.report(100)
		return true, result{data: []byte{}}
	}
	// the announced size is untrusted; the buffer grows as chunks arrive
	r.buf = make([]byte, 0, min(size, maxPrealloc))
	return false, result{}
}

// writeOp sends fixed-size slices one at a time, each acknowledged by
// WSFS_FILE_APPENDED.
type writeOp struct {
	blob      []byte
	sliceSize int
	total     int
	next      int // index of the slice to send next
}

func (w *writeOp) start(c *Client) {
	c.report(0)
}

func (w *writeOp) frame(c *Client, op *operation, f ports.Frame) (bool, result) {
	code := domain.Status(statusText(f))

	switch {
	case code == domain.StatusFileCreated && w.next == 0:
		if w.total == 0 {
			c.report(100)
			return true, result{}
		}
	case code == domain.StatusFileAppended && w.next > 0:
		if w.next == w.total {
			c.report(100)
			return true, result{}
		}
	default:
		return true, result{err: &domain.StatusError{Op: op.cmd.Verb, Code: code}}
	}

	if op.cancelled {
		return true, result{err: context.Canceled}
	}
	w.sendSlice(c)
	return false, result{}
}

func (w *writeOp) sendSlice(c *Client) {
	i := w.next
	lo := i * w.sliceSize
	hi := lo + w.sliceSize
	if hi > len(w.blob) {
		hi = len(w.blob)
	}
	w.next++

	pct := w.next * 100 / w.total
	if w.next == w.total {
		pct = 99
	}
	c.report(pct)

	if !c.send(w.blob[lo:hi]) {
		c.logger.Debug("slice dropped, channel not connected",
			ports.Int("slice", i),
			ports.Int("slices", w.total),
		)
	}
}

// statusOp expects exactly one status frame.
type statusOp struct {
	want          domain.Status
	indeterminate bool
}

func (s *statusOp) start(c *Client) {
	if s.indeterminate {
		c.report(progress.Indeterminate)
	}
}

func (s *statusOp) frame(c *Client, op *operation, f ports.Frame) (bool, result) {
	if code := domain.Status(statusText(f)); code != s.want {
		return true, result{err: &domain.StatusError{Op: op.cmd.Verb, Code: code}}
	}
	if s.indeterminate {
		c.report(100)
	}
	return true, result{}
}

func statusErr(op *operation, f ports.Frame) error {
	return &domain.StatusError{Op: op.cmd.Verb, Code: domain.Status(statusText(f))}
}
