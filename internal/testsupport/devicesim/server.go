package devicesim

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	wsadapter "github.com/wateringctl/wateringctl/internal/adapters/ws"
	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

// Heartbeat is the probe the event endpoint echoes.
const Heartbeat = "<conn_test>"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Device serves the fs socket, the event socket and the REST state API
// over an httptest server.
type Device struct {
	FS *FS

	srv *httptest.Server

	mu        sync.Mutex
	conns     map[*wsadapter.Conn]bool
	events    map[*wsadapter.Conn]bool
	writeMu   map[*wsadapter.Conn]*sync.Mutex
	mute      bool
	valves    []domain.Valve
	days      map[domain.Weekday]domain.Day
	restCalls map[string]int
}

// Start launches a simulated device and stops it when the test ends.
func Start(t *testing.T) *Device {
	t.Helper()

	d := &Device{
		FS:        NewFS(),
		conns:     make(map[*wsadapter.Conn]bool),
		events:    make(map[*wsadapter.Conn]bool),
		writeMu:   make(map[*wsadapter.Conn]*sync.Mutex),
		days:      make(map[domain.Weekday]domain.Day),
		restCalls: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/fs", d.serveFS)
	mux.HandleFunc("/wse", d.serveEvents)
	mux.HandleFunc("GET /valves", d.serveValves)
	mux.HandleFunc("GET /scheduler/{day}", d.serveDay)

	d.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		d.DropConnections()
		d.srv.Close()
	})
	return d
}

// URL returns the base http URL.
func (d *Device) URL() string {
	return d.srv.URL
}

// WebsocketURL returns the ws:// URL of path.
func (d *Device) WebsocketURL(path string) string {
	return "ws" + strings.TrimPrefix(d.srv.URL, "http") + path
}

// HTTPClient returns a client for the REST API.
func (d *Device) HTTPClient() *http.Client {
	return d.srv.Client()
}

// SetValves replaces the valve list served by GET /valves.
func (d *Device) SetValves(v []domain.Valve) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.valves = append([]domain.Valve(nil), v...)
}

// SetDay replaces the schedule served by GET /scheduler/{day}.
func (d *Device) SetDay(day domain.Weekday, s domain.Day) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.days[day] = s
}

// RESTCalls returns how often path was requested.
func (d *Device) RESTCalls(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.restCalls[path]
}

// MuteHeartbeat stops (or resumes) echoing heartbeat probes, leaving the
// connection half-open from the client's point of view.
func (d *Device) MuteHeartbeat(mute bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mute = mute
}

// Connections returns the number of open websockets, both endpoints.
func (d *Device) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// EventClients returns the number of connected event sockets.
func (d *Device) EventClients() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

// Broadcast sends a push event to every event socket.
func (d *Device) Broadcast(ev domain.Event) {
	d.mu.Lock()
	targets := make([]*wsadapter.Conn, 0, len(d.events))
	for c := range d.events {
		targets = append(targets, c)
	}
	d.mu.Unlock()

	for _, c := range targets {
		d.write(c, ports.Frame{Type: ports.BinaryFrame, Data: []byte(ev.String())})
	}
}

// DropConnections closes every websocket from the device side.
func (d *Device) DropConnections() {
	d.mu.Lock()
	conns := make([]*wsadapter.Conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

func (d *Device) accept(w http.ResponseWriter, r *http.Request, events bool) *wsadapter.Conn {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil
	}
	c := wsadapter.NewConn(raw)

	d.mu.Lock()
	d.conns[c] = true
	d.writeMu[c] = &sync.Mutex{}
	if events {
		d.events[c] = true
	}
	d.mu.Unlock()
	return c
}

func (d *Device) release(c *wsadapter.Conn) {
	d.mu.Lock()
	delete(d.conns, c)
	delete(d.events, c)
	delete(d.writeMu, c)
	d.mu.Unlock()
	_ = c.Close()
}

func (d *Device) write(c *wsadapter.Conn, f ports.Frame) {
	d.mu.Lock()
	mu := d.writeMu[c]
	d.mu.Unlock()
	if mu == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	_ = c.WriteFrame(f)
}

func (d *Device) serveFS(w http.ResponseWriter, r *http.Request) {
	c := d.accept(w, r, false)
	if c == nil {
		return
	}
	defer d.release(c)

	for {
		f, err := c.ReadFrame()
		if err != nil {
			return
		}
		for _, reply := range d.FS.Handle(f) {
			d.write(c, reply)
		}
	}
}

func (d *Device) serveEvents(w http.ResponseWriter, r *http.Request) {
	c := d.accept(w, r, true)
	if c == nil {
		return
	}
	defer d.release(c)

	for {
		f, err := c.ReadFrame()
		if err != nil {
			return
		}
		if f.Text() != Heartbeat {
			continue
		}
		d.mu.Lock()
		mute := d.mute
		d.mu.Unlock()
		if !mute {
			d.write(c, ports.Frame{Type: ports.BinaryFrame, Data: []byte(Heartbeat)})
		}
	}
}

func (d *Device) serveValves(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.restCalls["/valves"]++
	body := domain.ValveList{Items: append([]domain.Valve{}, d.valves...)}
	d.mu.Unlock()

	writeJSON(w, http.StatusOK, body)
}

func (d *Device) serveDay(w http.ResponseWriter, r *http.Request) {
	day, ok := domain.ParseWeekday(r.PathValue("day"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   true,
			"code":    "INVALID_WEEKDAY",
			"message": "Invalid weekday " + r.PathValue("day"),
		})
		return
	}

	d.mu.Lock()
	d.restCalls["/scheduler/"+string(day)]++
	s := d.days[day]
	d.mu.Unlock()

	if s.Intervals == nil {
		s.Intervals = []domain.Interval{}
	}
	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
