// Package fsclient speaks the delimited file-system command protocol of the
// device.
//
// Frames carry no correlation id, so a Client runs exactly one operation at
// a time: the pending slot holds the operation that owns every inbound frame
// until its terminal frame arrives, its guard expires or its context ends.
// Issuing a second operation meanwhile fails with domain.ErrOperationInFlight.
package fsclient

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
	"github.com/wateringctl/wateringctl/internal/progress"
	"github.com/wateringctl/wateringctl/internal/transport"
)

// ProgressPrefix marks frames that carry a server-side percentage.
const ProgressPrefix = "PROGRESS" + domain.Delimiter

// Default guards and slice size.
const (
	DefaultMetaTimeout        = 5 * time.Second
	DefaultPayloadIdleTimeout = 20 * time.Second
	DefaultSliceSize          = 1024
)

// Channel is the part of transport.Channel the client needs.
type Channel interface {
	Send(f ports.Frame) bool
	SetHandler(h transport.Handler) transport.Handler
}

// ErrorInterceptor sees every failed operation once before it is returned.
type ErrorInterceptor interface {
	Wrap(err error) error
}

// Config tunes a Client.
type Config struct {
	// MetaTimeout is the fixed guard of List, CreateDirectory, Delete* and
	// UpdateFirmware.
	MetaTimeout time.Duration

	// PayloadIdleTimeout is the guard of WriteFile and Untar. It is re-armed
	// by every inbound frame, progress frames included.
	PayloadIdleTimeout time.Duration

	// SliceSize is the upload slice length in bytes.
	SliceSize int
}

// DefaultConfig returns the stock guards and slice size.
func DefaultConfig() Config {
	return Config{
		MetaTimeout:        DefaultMetaTimeout,
		PayloadIdleTimeout: DefaultPayloadIdleTimeout,
		SliceSize:          DefaultSliceSize,
	}
}

// Client issues file-system commands over one channel.
type Client struct {
	ch      Channel
	tracker *progress.Tracker
	errs    ErrorInterceptor
	logger  ports.Logger
	cfg     Config

	mu      sync.Mutex
	pending *operation
	closed  bool

	// percents queued under mu, published to the tracker after unlock
	percents []int

	// flushMu keeps percent updates in the order they were queued.
	flushMu sync.Mutex
}

// New creates a client and installs it as the channel's inbound handler.
// errs may be nil. Percent updates reach tracker subscribers in order;
// subscribers must not call back into the client.
func New(ch Channel, tracker *progress.Tracker, errs ErrorInterceptor, logger ports.Logger, cfg Config) *Client {
	if cfg.SliceSize <= 0 {
		cfg.SliceSize = DefaultSliceSize
	}
	c := &Client{
		ch:      ch,
		tracker: tracker,
		errs:    errs,
		logger:  logger,
		cfg:     cfg,
	}
	ch.SetHandler(c.dispatch)
	return c
}

// Close releases the channel's handler slot and fails the pending operation,
// if any, with domain.ErrChannelClosed.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	if op := c.pending; op != nil {
		c.resolveLocked(op, result{err: domain.ErrChannelClosed})
	}
	c.mu.Unlock()
	c.ch.SetHandler(nil)
}

// Busy reports whether an operation is pending.
func (c *Client) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// List returns the entries of the directory at p.
func (c *Client) List(ctx context.Context, p string) ([]domain.Entry, error) {
	op := c.newOperation(domain.FetchCommand(p, true), &listOp{}, c.cfg.MetaTimeout, false)
	res, err := c.run(ctx, op)
	if err != nil {
		return nil, err
	}
	return res.entries, nil
}

// ReadFile downloads the file at p. It has no fixed guard: a stream that
// stays short of the announced size only ends with ctx.
func (c *Client) ReadFile(ctx context.Context, p string) ([]byte, error) {
	op := c.newOperation(domain.FetchCommand(p, false), &readOp{size: -1}, 0, false)
	res, err := c.run(ctx, op)
	if err != nil {
		return nil, err
	}
	return res.data, nil
}

// WriteFile uploads blob to p in slices, each awaiting its acknowledgment.
// Cancelling ctx stops the upload before the next slice; a slice already
// sent cannot be retracted.
func (c *Client) WriteFile(ctx context.Context, p string, overwrite bool, blob []byte) error {
	w := &writeOp{blob: blob, sliceSize: c.cfg.SliceSize}
	w.total = (len(blob) + w.sliceSize - 1) / w.sliceSize
	op := c.newOperation(domain.WriteCommand(p, overwrite, int64(len(blob))), w, c.cfg.PayloadIdleTimeout, true)
	op.cooperative = true
	_, err := c.run(ctx, op)
	return err
}

// CreateDirectory creates name inside dir.
func (c *Client) CreateDirectory(ctx context.Context, dir, name string) error {
	op := c.newOperation(domain.MkdirCommand(domain.JoinPath(dir, name)),
		&statusOp{want: domain.StatusDirCreated}, c.cfg.MetaTimeout, false)
	_, err := c.run(ctx, op)
	return err
}

// DeleteFile deletes the file at p.
func (c *Client) DeleteFile(ctx context.Context, p string) error {
	return c.delete(ctx, p, false)
}

// DeleteDirectory recursively deletes the directory at p.
func (c *Client) DeleteDirectory(ctx context.Context, p string) error {
	return c.delete(ctx, p, true)
}

func (c *Client) delete(ctx context.Context, p string, directory bool) error {
	op := c.newOperation(domain.DeleteCommand(p, directory),
		&statusOp{want: domain.StatusDeleted}, c.cfg.MetaTimeout, false)
	_, err := c.run(ctx, op)
	return err
}

// Untar extracts the archive at p on the device. Progress is indeterminate
// until the device reports percentages.
func (c *Client) Untar(ctx context.Context, p string) error {
	op := c.newOperation(domain.UntarCommand(p),
		&statusOp{want: domain.StatusUntarred, indeterminate: true}, c.cfg.PayloadIdleTimeout, true)
	_, err := c.run(ctx, op)
	return err
}

// UpdateFirmware flashes the image at p.
func (c *Client) UpdateFirmware(ctx context.Context, p string) error {
	op := c.newOperation(domain.UpdateCommand(p),
		&statusOp{want: domain.StatusUpdated}, c.cfg.MetaTimeout, false)
	_, err := c.run(ctx, op)
	return err
}

func (c *Client) run(ctx context.Context, op *operation) (result, error) {
	res := c.do(ctx, op)
	if res.err == nil {
		return res, nil
	}
	err := fmt.Errorf("%s %s: %w", strings.ToLower(string(op.cmd.Verb)), op.cmd.Path, res.err)
	if c.errs != nil {
		err = c.errs.Wrap(err)
	}
	return res, err
}

func (c *Client) do(ctx context.Context, op *operation) result {
	if err := ctx.Err(); err != nil {
		return result{err: err}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return result{err: domain.ErrChannelClosed}
	}
	if c.pending != nil {
		busy := c.pending.cmd
		c.mu.Unlock()
		c.logger.Warn("command rejected, another operation is pending",
			ports.String("command", op.cmd.String()),
			ports.String("pending", busy.String()),
		)
		return result{err: domain.ErrOperationInFlight}
	}
	c.pending = op
	op.task = c.tracker.StartTask(op.fixed)
	c.armLocked(op)
	if s, ok := op.variant.(starter); ok {
		s.start(c)
	}

	c.logger.Debug("sending command", ports.String("command", op.cmd.String()))
	if !c.ch.Send(ports.Frame{Type: ports.BinaryFrame, Data: op.cmd.Encode()}) {
		c.logger.Debug("command dropped, channel not connected",
			ports.String("command", op.cmd.String()),
		)
	}
	c.mu.Unlock()
	c.flushPercents()

	select {
	case res := <-op.done:
		return res
	case <-ctx.Done():
	}

	c.mu.Lock()
	if c.pending == op {
		if op.cooperative {
			op.cancelled = true
		} else {
			c.resolveLocked(op, result{err: ctx.Err()})
		}
	}
	c.mu.Unlock()
	return <-op.done
}

// dispatch is the channel handler. It runs on the channel's read goroutine.
func (c *Client) dispatch(f ports.Frame) {
	if bytes.HasPrefix(f.Data, []byte(ProgressPrefix)) {
		c.progressFrame(f)
		return
	}

	c.mu.Lock()
	op := c.pending
	if op == nil {
		c.mu.Unlock()
		c.logger.Debug("frame dropped, no pending operation",
			ports.Int("bytes", len(f.Data)),
		)
		return
	}
	c.touchLocked(op)
	if done, res := op.variant.frame(c, op, f); done {
		c.resolveLocked(op, res)
	}
	c.mu.Unlock()
	c.flushPercents()
}

func (c *Client) progressFrame(f ports.Frame) {
	raw := strings.TrimRight(string(f.Data[len(ProgressPrefix):]), "\x00")
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		c.logger.Debug("ignoring malformed progress frame", ports.String("frame", f.Text()))
		return
	}

	c.mu.Lock()
	if op := c.pending; op != nil {
		c.touchLocked(op)
	}
	c.report(n)
	c.mu.Unlock()
	c.flushPercents()
}

// report queues a percent update. Must hold c.mu.
func (c *Client) report(p int) {
	c.percents = append(c.percents, p)
}

func (c *Client) flushPercents() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	queued := c.percents
	c.percents = nil
	c.mu.Unlock()

	for _, p := range queued {
		c.tracker.SetPercent(p)
	}
}

// send writes a frame on behalf of the pending operation. Must hold c.mu.
func (c *Client) send(data []byte) bool {
	return c.ch.Send(ports.Frame{Type: ports.BinaryFrame, Data: data})
}

// armLocked starts the operation's guard, if it has one.
func (c *Client) armLocked(op *operation) {
	d := op.fixed
	if op.idle > 0 {
		d = op.idle
	}
	if d <= 0 {
		return
	}
	op.gen++
	gen := op.gen
	op.guard = time.AfterFunc(d, func() { c.expire(op, gen) })
}

// touchLocked re-arms an idle guard after inbound traffic.
func (c *Client) touchLocked(op *operation) {
	if op.idle <= 0 {
		return
	}
	if op.guard != nil {
		op.guard.Stop()
	}
	c.armLocked(op)
}

func (c *Client) expire(op *operation, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != op || op.gen != gen {
		return
	}
	c.logger.Warn("operation timed out",
		ports.String("command", op.cmd.String()),
	)
	c.resolveLocked(op, result{err: domain.ErrTimeout})
}

// resolveLocked clears the pending slot and hands res to the waiting caller.
func (c *Client) resolveLocked(op *operation, res result) {
	if c.pending != op {
		return
	}
	c.pending = nil
	if op.guard != nil {
		op.guard.Stop()
	}
	c.tracker.FinishTask(op.task)
	op.done <- res
}

func (c *Client) newOperation(cmd domain.Command, v variant, guard time.Duration, idle bool) *operation {
	op := &operation{
		cmd:     cmd,
		variant: v,
		done:    make(chan result, 1),
	}
	if idle {
		op.idle = guard
	} else {
		op.fixed = guard
	}
	return op
}

// statusText decodes a status frame. The device pads some replies with NUL.
func statusText(f ports.Frame) string {
	return strings.TrimSpace(strings.TrimRight(f.Text(), "\x00"))
}
