package fsclient

import (
	"archive/tar"
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logadapter "github.com/wateringctl/wateringctl/internal/adapters/log"
	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
	"github.com/wateringctl/wateringctl/internal/progress"
	"github.com/wateringctl/wateringctl/internal/testsupport/devicesim"
	"github.com/wateringctl/wateringctl/internal/testsupport/fakeconn"
	"github.com/wateringctl/wateringctl/internal/transport"
)

type countingInterceptor struct {
	mu   sync.Mutex
	errs []error
}

func (c *countingInterceptor) Wrap(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
	return err
}

func (c *countingInterceptor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

type harness struct {
	client  *Client
	fs      *devicesim.FS
	dialer  *fakeconn.Dialer
	tracker *progress.Tracker
	errs    *countingInterceptor

	mu       sync.Mutex
	percents []int
}

// newHarness connects a client to an in-memory device. A nil script answers
// through the simulated file tree.
func newHarness(t *testing.T, cfg Config, script func(c *fakeconn.Conn, f ports.Frame)) *harness {
	t.Helper()

	h := &harness{
		fs:      devicesim.NewFS(),
		dialer:  fakeconn.NewDialer(),
		tracker: progress.New(),
		errs:    &countingInterceptor{},
	}
	if script == nil {
		script = func(c *fakeconn.Conn, f ports.Frame) {
			for _, reply := range h.fs.Handle(f) {
				c.Push(reply)
			}
		}
	}
	h.dialer.OnWrite = script
	h.tracker.OnPercent(func(p int) {
		h.mu.Lock()
		h.percents = append(h.percents, p)
		h.mu.Unlock()
	})

	logger := logadapter.NewNoopLogger()
	ch := transport.New(transport.Config{
		URL:            "ws://device/api/fs",
		BackoffInitial: 5 * time.Millisecond,
		BackoffMax:     20 * time.Millisecond,
	}, h.dialer, logger)
	h.client = New(ch, h.tracker, h.errs, logger, cfg)
	t.Cleanup(func() {
		h.client.Close()
		_ = ch.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ch.Connect(ctx))
	return h
}

func (h *harness) progress() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.percents...)
}

func (h *harness) written() []ports.Frame {
	return h.dialer.Last().Written()
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func TestClient_SequentialOperations(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ctx := testContext(t)
	h.fs.Put("/www/index.html", []byte("<html></html>"))
	h.fs.Mkdir("/logs")

	entries, err := h.client.List(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []domain.Entry{
		{IsDirectory: true, Name: "/logs"},
		{IsDirectory: true, Name: "/www"},
	}, entries)

	data, err := h.client.ReadFile(ctx, "/www/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))

	require.NoError(t, h.client.WriteFile(ctx, "/logs/today.txt", false, []byte("dry")))
	require.NoError(t, h.client.CreateDirectory(ctx, "/www", "img"))

	entries, err = h.client.List(ctx, "/www")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "img", entries[0].BaseName())
	assert.True(t, entries[0].IsDirectory)
	assert.Equal(t, "index.html", entries[1].BaseName())
	assert.Equal(t, int64(13), entries[1].Size)

	require.NoError(t, h.client.DeleteFile(ctx, "/logs/today.txt"))
	require.NoError(t, h.client.DeleteDirectory(ctx, "/www"))

	entries, err = h.client.List(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []domain.Entry{{IsDirectory: true, Name: "/logs"}}, entries)
	assert.Zero(t, h.errs.count())
	assert.False(t, h.client.Busy())
}

func TestClient_WireEncoding(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ctx := testContext(t)
	h.fs.Put("/fw.bin", []byte("image"))

	_, _ = h.client.List(ctx, "/")
	_, _ = h.client.ReadFile(ctx, "/fw.bin")
	_ = h.client.WriteFile(ctx, "/a.txt", true, []byte("x"))
	_ = h.client.CreateDirectory(ctx, "/", "d")
	_ = h.client.DeleteDirectory(ctx, "/d")
	_ = h.client.UpdateFirmware(ctx, "/fw.bin")

	var got []string
	for _, f := range h.written() {
		assert.Equal(t, ports.BinaryFrame, f.Type)
		got = append(got, string(f.Data))
	}
	assert.Equal(t, []string{
		"FETCH;/;true",
		"FETCH;/fw.bin;false",
		"OVERWRITE;/a.txt;false;1",
		"x",
		"WRITE;/d;true",
		"DELETE;/d;true",
		"UPDATE;/fw.bin",
	}, got)
	assert.Equal(t, []string{"/fw.bin"}, h.fs.Flashed())
}

func TestClient_ReadAfterWrite(t *testing.T) {
	sizes := []int{1, 1023, 1024, 1025, 5000, 9000}

	for _, size := range sizes {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			h := newHarness(t, DefaultConfig(), nil)
			h.fs.ChunkSize = 1000
			ctx := testContext(t)
			want := payload(size)

			require.NoError(t, h.client.WriteFile(ctx, "/blob.bin", false, want))
			got, err := h.client.ReadFile(ctx, "/blob.bin")
			require.NoError(t, err)
			assert.True(t, bytes.Equal(want, got), "round trip differs")
		})
	}
}

func TestClient_UploadSlicing(t *testing.T) {
	tests := []struct {
		size      int
		slices    int
		lastSlice int
	}{
		{1, 1, 1},
		{1023, 1, 1023},
		{1024, 1, 1024},
		{1025, 2, 1},
		{3000, 3, 952},
		{4096, 4, 1024},
		{10 * 1024, 10, 1024},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.size), func(t *testing.T) {
			h := newHarness(t, DefaultConfig(), nil)
			ctx := testContext(t)

			require.NoError(t, h.client.WriteFile(ctx, "/up.bin", false, payload(tt.size)))

			written := h.written()
			require.Len(t, written, 1+tt.slices)
			slices := written[1:]
			for _, s := range slices[:len(slices)-1] {
				assert.Len(t, s.Data, DefaultSliceSize)
			}
			assert.Len(t, slices[len(slices)-1].Data, tt.lastSlice)

			pct := h.progress()
			require.NotEmpty(t, pct)
			for i := 1; i < len(pct); i++ {
				assert.GreaterOrEqual(t, pct[i], pct[i-1], "progress went backwards: %v", pct)
			}
			assert.Equal(t, 100, pct[len(pct)-1])
			assert.Equal(t, 1, count(pct, 100), "100 reported before the final acknowledgment: %v", pct)
		})
	}
}

func TestClient_UploadProgressWaitsForFinalAck(t *testing.T) {
	acks := make(chan struct{})
	h := newHarness(t, DefaultConfig(), func(c *fakeconn.Conn, f ports.Frame) {
		if strings.HasPrefix(string(f.Data), "WRITE;") {
			c.PushBinary([]byte(domain.StatusFileCreated))
			return
		}
		go func() {
			<-acks
			c.PushBinary([]byte(domain.StatusFileAppended))
		}()
	})
	ctx := testContext(t)

	errc := make(chan error, 1)
	go func() { errc <- h.client.WriteFile(ctx, "/two.bin", false, payload(2048)) }()

	acks <- struct{}{}
	require.Eventually(t, func() bool { return h.tracker.Percent() == 99 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 99, h.tracker.Percent())

	acks <- struct{}{}
	require.NoError(t, <-errc)
	assert.Equal(t, []int{0, 50, 99, 100}, h.progress())
}

func TestClient_ZeroLengthUpload(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ctx := testContext(t)

	require.NoError(t, h.client.WriteFile(ctx, "/empty", false, nil))

	assert.Len(t, h.written(), 1)
	data, ok := h.fs.File("/empty")
	require.True(t, ok)
	assert.Empty(t, data)
}

func TestClient_ChunkedDownload(t *testing.T) {
	h := newHarness(t, DefaultConfig(), func(c *fakeconn.Conn, f ports.Frame) {
		c.PushBinary([]byte("WSFS_FILE_FOUND;10"))
		c.PushBinary([]byte("abc"))
		c.PushBinary([]byte("defg"))
		c.PushBinary([]byte("hij"))
	})

	data, err := h.client.ReadFile(testContext(t), "/ten.txt")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij", string(data))
	assert.Equal(t, []int{0, 30, 70, 100}, h.progress())
}

func TestClient_ShortDownloadNeverResolves(t *testing.T) {
	h := newHarness(t, DefaultConfig(), func(c *fakeconn.Conn, f ports.Frame) {
		c.PushBinary([]byte("WSFS_FILE_FOUND;10"))
		c.PushBinary([]byte("abc"))
		c.PushBinary([]byte("defg"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := h.client.ReadFile(ctx, "/ten.txt")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, h.client.Busy())
}

func TestClient_DownloadOverrun(t *testing.T) {
	h := newHarness(t, DefaultConfig(), func(c *fakeconn.Conn, f ports.Frame) {
		c.PushBinary([]byte("WSFS_FILE_FOUND;4"))
		c.PushBinary([]byte("abc"))
		c.PushBinary([]byte("def"))
	})

	_, err := h.client.ReadFile(testContext(t), "/four.txt")
	assert.ErrorIs(t, err, domain.ErrLengthOverrun)
}

func TestClient_HugeAnnouncedSizeWaitsForChunks(t *testing.T) {
	h := newHarness(t, DefaultConfig(), func(c *fakeconn.Conn, f ports.Frame) {
		c.PushBinary([]byte("WSFS_FILE_FOUND;4611686018427387904"))
		c.PushBinary([]byte("abc"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := h.client.ReadFile(ctx, "/huge.bin")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, h.client.Busy())
}

func TestClient_EmptyFileDownload(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.fs.Put("/empty", nil)

	data, err := h.client.ReadFile(testContext(t), "/empty")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestClient_ErrorStatusFailsOperation(t *testing.T) {
	tests := []struct {
		name string
		call func(ctx context.Context, c *Client) error
		want domain.Status
	}{
		{"list missing", func(ctx context.Context, c *Client) error {
			_, err := c.List(ctx, "/nope")
			return err
		}, domain.StatusTargetNotExisting},
		{"list file", func(ctx context.Context, c *Client) error {
			_, err := c.List(ctx, "/www/index.html")
			return err
		}, domain.StatusNotADir},
		{"read directory", func(ctx context.Context, c *Client) error {
			_, err := c.ReadFile(ctx, "/www")
			return err
		}, domain.StatusIsADir},
		{"read missing", func(ctx context.Context, c *Client) error {
			_, err := c.ReadFile(ctx, "/nope")
			return err
		}, domain.StatusTargetNotExisting},
		{"write existing", func(ctx context.Context, c *Client) error {
			return c.WriteFile(ctx, "/www/index.html", false, []byte("x"))
		}, domain.StatusFileExists},
		{"write without parent", func(ctx context.Context, c *Client) error {
			return c.WriteFile(ctx, "/a/b/c.txt", false, []byte("x"))
		}, domain.StatusCouldNotCreateFile},
		{"mkdir existing", func(ctx context.Context, c *Client) error {
			return c.CreateDirectory(ctx, "/", "www")
		}, domain.StatusDirExists},
		{"delete missing", func(ctx context.Context, c *Client) error {
			return c.DeleteFile(ctx, "/nope")
		}, domain.StatusTargetNotExisting},
		{"delete directory as file", func(ctx context.Context, c *Client) error {
			return c.DeleteFile(ctx, "/www")
		}, domain.StatusIsADir},
		{"untar missing", func(ctx context.Context, c *Client) error {
			return c.Untar(ctx, "/nope.tar")
		}, domain.StatusTargetNotExisting},
		{"update missing", func(ctx context.Context, c *Client) error {
			return c.UpdateFirmware(ctx, "/nope.bin")
		}, domain.StatusTargetNotExisting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig(), nil)
			h.fs.Put("/www/index.html", []byte("hi"))

			err := tt.call(testContext(t), h.client)
			require.Error(t, err)
			code, ok := domain.StatusCode(err)
			require.True(t, ok, "not a status error: %v", err)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, 1, h.errs.count())
			assert.False(t, h.client.Busy())
		})
	}
}

func TestClient_MalformedListing(t *testing.T) {
	h := newHarness(t, DefaultConfig(), func(c *fakeconn.Conn, f ports.Frame) {
		c.PushBinary([]byte(`{"items": [`))
	})

	_, err := h.client.List(testContext(t), "/")
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
}

func TestClient_RejectsConcurrentOperation(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.fs.SetSilent(true)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := h.client.ReadFile(ctx, "/slow")
		errc <- err
	}()
	require.Eventually(t, h.client.Busy, time.Second, 5*time.Millisecond)

	_, err := h.client.List(testContext(t), "/")
	assert.ErrorIs(t, err, domain.ErrOperationInFlight)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	h.fs.SetSilent(false)
	_, err = h.client.List(testContext(t), "/")
	assert.NoError(t, err)
}

func TestClient_MetaTimeoutDropsLateFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetaTimeout = 30 * time.Millisecond
	h := newHarness(t, cfg, nil)
	h.fs.SetSilent(true)

	_, err := h.client.List(testContext(t), "/")
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.False(t, h.client.Busy())

	// The device answers after the guard expired; nobody is listening.
	h.dialer.Last().PushBinary([]byte(domain.StatusTargetNotExisting))
	time.Sleep(20 * time.Millisecond)

	h.fs.SetSilent(false)
	h.fs.Put("/f", []byte("x"))
	require.NoError(t, h.client.DeleteFile(testContext(t), "/f"))
	assert.False(t, h.fs.Exists("/f"))
}

func TestClient_ProgressFramesNeverResolve(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, DefaultConfig(), func(c *fakeconn.Conn, f ports.Frame) {
		c.PushBinary([]byte("PROGRESS;10"))
		c.PushBinary([]byte("PROGRESS;60"))
		go func() {
			<-release
			c.PushBinary([]byte(domain.StatusUntarred))
		}()
	})

	errc := make(chan error, 1)
	go func() { errc <- h.client.Untar(testContext(t), "/www.tar") }()

	require.Eventually(t, func() bool { return h.tracker.Percent() == 60 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.client.Busy())

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, []int{progress.Indeterminate, 10, 60, 100}, h.progress())
}

func TestClient_IdleGuardReArmedByProgress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PayloadIdleTimeout = 80 * time.Millisecond
	h := newHarness(t, cfg, func(c *fakeconn.Conn, f ports.Frame) {
		go func() {
			for p := 20; p <= 100; p += 20 {
				time.Sleep(30 * time.Millisecond)
				c.PushBinary([]byte("PROGRESS;" + strconv.Itoa(p)))
			}
			c.PushBinary([]byte(domain.StatusUntarred))
		}()
	})

	assert.NoError(t, h.client.Untar(testContext(t), "/big.tar"))
}

func TestClient_IdleGuardExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PayloadIdleTimeout = 40 * time.Millisecond
	h := newHarness(t, cfg, func(c *fakeconn.Conn, f ports.Frame) {
		c.PushBinary([]byte("PROGRESS;5"))
	})

	assert.ErrorIs(t, h.client.Untar(testContext(t), "/stuck.tar"), domain.ErrTimeout)
}

func TestClient_UntarExtracts(t *testing.T) {
	var archive bytes.Buffer
	tw := tar.NewWriter(&archive)
	for name, body := range map[string]string{"site/index.html": "<p>", "site/app.js": "go()"} {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	h := newHarness(t, DefaultConfig(), nil)
	h.fs.Put("/www/site.tar", archive.Bytes())

	require.NoError(t, h.client.Untar(testContext(t), "/www/site.tar"))

	got, ok := h.fs.File("/www/site/app.js")
	require.True(t, ok)
	assert.Equal(t, "go()", string(got))
	pct := h.progress()
	assert.Equal(t, progress.Indeterminate, pct[0])
	assert.Equal(t, 100, pct[len(pct)-1])
}

func TestClient_UploadCancelledBetweenSlices(t *testing.T) {
	sliceSent := make(chan struct{}, 8)
	h := newHarness(t, DefaultConfig(), func(c *fakeconn.Conn, f ports.Frame) {
		if strings.HasPrefix(string(f.Data), "WRITE;") {
			c.PushBinary([]byte(domain.StatusFileCreated))
			return
		}
		sliceSent <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.client.WriteFile(ctx, "/big.bin", false, payload(5*1024)) }()

	<-sliceSent
	cancel()
	time.Sleep(20 * time.Millisecond)
	h.dialer.Last().PushBinary([]byte(domain.StatusFileAppended))

	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Len(t, h.written(), 2, "no slice may follow the cancellation")
	assert.Equal(t, 1, h.errs.count())
}

func TestClient_SendsWhileDisconnectedTimeOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetaTimeout = 30 * time.Millisecond
	h := newHarness(t, cfg, nil)

	h.dialer.SetFail(assert.AnError)
	_ = h.dialer.Last().Close()
	require.Eventually(t, func() bool { return h.dialer.Dials() > 1 }, time.Second, time.Millisecond)

	_, err := h.client.List(testContext(t), "/")
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func count(xs []int, v int) int {
	n := 0
	for _, x := range xs {
		if x == v {
			n++
		}
	}
	return n
}
