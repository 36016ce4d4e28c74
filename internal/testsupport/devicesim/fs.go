// Package devicesim simulates the device side of the wire protocols for
// tests: the file-system command endpoint, the push-event endpoint with its
// heartbeat echo, and the REST state API.
package devicesim

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

// DefaultChunkSize is the download chunk length the firmware uses.
const DefaultChunkSize = 4096

// FS is an in-memory file tree answering file-system commands.
type FS struct {
	// ChunkSize is the download chunk length. Zero means DefaultChunkSize.
	ChunkSize int

	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	upload  *upload
	silent  bool
	flashed []string
}

type upload struct {
	path string
	size int
	buf  []byte
}

// NewFS returns a tree holding only the root directory.
func NewFS() *FS {
	return &FS{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

// Put stores a file, creating parent directories.
func (s *FS) Put(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = clean(p)
	s.mkdirAllLocked(path.Dir(p))
	s.files[p] = append([]byte(nil), data...)
}

// Mkdir creates a directory and its parents.
func (s *FS) Mkdir(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAllLocked(clean(p))
}

// File returns the content of a file.
func (s *FS) File(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[clean(p)]
	return b, ok
}

// Exists reports whether p is a file or directory.
func (s *FS) Exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = clean(p)
	_, isFile := s.files[p]
	return isFile || s.dirs[p]
}

// SetSilent makes FS swallow commands without answering.
func (s *FS) SetSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// Flashed returns every firmware image passed to UPDATE.
func (s *FS) Flashed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.flashed...)
}

// Handle answers one inbound frame with zero or more outbound frames.
func (s *FS) Handle(f ports.Frame) []ports.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.silent {
		return nil
	}
	if f.Type != ports.BinaryFrame {
		return status(domain.StatusNonBinaryData)
	}
	if s.upload != nil {
		return s.appendLocked(f.Data)
	}
	if len(f.Data) == 0 {
		return status(domain.StatusEmptyRequest)
	}

	fields := strings.Split(string(f.Data), domain.Delimiter)
	if len(fields) < 2 || fields[1] == "" {
		return status(domain.StatusParamMissing)
	}
	verb, p := domain.Verb(fields[0]), clean(fields[1])
	flag := func(i int) (bool, bool) {
		if i >= len(fields) {
			return false, false
		}
		return fields[i] == "true", true
	}

	switch verb {
	case domain.VerbFetch:
		dir, ok := flag(2)
		if !ok {
			return status(domain.StatusParamMissing)
		}
		return s.fetchLocked(p, dir)
	case domain.VerbWrite, domain.VerbOverwrite:
		dir, ok := flag(2)
		if !ok {
			return status(domain.StatusParamMissing)
		}
		size := -1
		if len(fields) > 3 {
			n, err := strconv.Atoi(fields[3])
			if err != nil {
				return status(domain.StatusParamMissing)
			}
			size = n
		}
		return s.writeLocked(p, dir, verb == domain.VerbOverwrite, size)
	case domain.VerbDelete:
		dir, ok := flag(2)
		if !ok {
			return status(domain.StatusParamMissing)
		}
		return s.deleteLocked(p, dir)
	case domain.VerbUntar:
		return s.untarLocked(p)
	case domain.VerbUpdate:
		if _, ok := s.files[p]; !ok {
			return status(domain.StatusTargetNotExisting)
		}
		s.flashed = append(s.flashed, p)
		return status(domain.StatusUpdated)
	default:
		return status(domain.StatusCommandUnknown)
	}
}

func (s *FS) fetchLocked(p string, dir bool) []ports.Frame {
	data, isFile := s.files[p]
	switch {
	case !isFile && !s.dirs[p]:
		return status(domain.StatusTargetNotExisting)
	case dir && isFile:
		return status(domain.StatusNotADir)
	case !dir && !isFile:
		return status(domain.StatusIsADir)
	}

	if dir {
		listing := domain.Listing{Items: []domain.Entry{}}
		for _, name := range s.childrenLocked(p) {
			if b, ok := s.files[name]; ok {
				listing.Items = append(listing.Items, domain.Entry{Size: int64(len(b)), Name: name})
			} else {
				listing.Items = append(listing.Items, domain.Entry{IsDirectory: true, Name: name})
			}
		}
		body, _ := json.Marshal(listing)
		return []ports.Frame{{Type: ports.BinaryFrame, Data: body}}
	}

	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	out := []ports.Frame{{
		Type: ports.BinaryFrame,
		Data: []byte(string(domain.StatusFileFound) + domain.Delimiter + strconv.Itoa(len(data))),
	}}
	for lo := 0; lo < len(data); lo += chunk {
		hi := lo + chunk
		if hi > len(data) {
			hi = len(data)
		}
		out = append(out, ports.Frame{Type: ports.BinaryFrame, Data: append([]byte(nil), data[lo:hi]...)})
	}
	return out
}

func (s *FS) writeLocked(p string, dir, overwrite bool, size int) []ports.Frame {
	_, isFile := s.files[p]
	if isFile || s.dirs[p] {
		if !overwrite {
			if isFile {
				return status(domain.StatusFileExists)
			}
			return status(domain.StatusDirExists)
		}
	}
	if !s.dirs[path.Dir(p)] {
		if dir {
			return status(domain.StatusCouldNotCreateDir)
		}
		return status(domain.StatusCouldNotCreateFile)
	}

	if dir {
		s.dirs[p] = true
		return status(domain.StatusDirCreated)
	}
	if size < 0 {
		return status(domain.StatusParamMissing)
	}
	if size == 0 {
		s.files[p] = []byte{}
		return status(domain.StatusFileCreated)
	}
	s.upload = &upload{path: p, size: size, buf: make([]byte, 0, size)}
	return status(domain.StatusFileCreated)
}

func (s *FS) appendLocked(b []byte) []ports.Frame {
	u := s.upload
	u.buf = append(u.buf, b...)
	if len(u.buf) >= u.size {
		s.files[u.path] = u.buf[:u.size]
		s.upload = nil
	}
	return status(domain.StatusFileAppended)
}

func (s *FS) deleteLocked(p string, dir bool) []ports.Frame {
	_, isFile := s.files[p]
	switch {
	case !isFile && !s.dirs[p]:
		return status(domain.StatusTargetNotExisting)
	case dir && isFile:
		return status(domain.StatusNotADir)
	case !dir && !isFile:
		return status(domain.StatusIsADir)
	}
	if !dir {
		delete(s.files, p)
		return status(domain.StatusDeleted)
	}
	if p == "/" {
		return status(domain.StatusCouldNotDeleteDir)
	}
	prefix := p + "/"
	for name := range s.files {
		if strings.HasPrefix(name, prefix) {
			delete(s.files, name)
		}
	}
	for name := range s.dirs {
		if name == p || strings.HasPrefix(name, prefix) {
			delete(s.dirs, name)
		}
	}
	return status(domain.StatusDeleted)
}

// untarLocked extracts a tar archive next to itself, reporting progress per
// entry.
func (s *FS) untarLocked(p string) []ports.Frame {
	data, ok := s.files[p]
	if !ok {
		return status(domain.StatusTargetNotExisting)
	}

	type item struct {
		name string
		dir  bool
		body []byte
	}
	var items []item
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return status(domain.StatusCouldNotCreateFile)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			return status(domain.StatusCouldNotCreateFile)
		}
		items = append(items, item{name: hdr.Name, dir: hdr.Typeflag == tar.TypeDir, body: body})
	}

	base := path.Dir(p)
	var out []ports.Frame
	for i, it := range items {
		target := clean(path.Join(base, it.name))
		if it.dir {
			s.mkdirAllLocked(target)
		} else {
			s.mkdirAllLocked(path.Dir(target))
			s.files[target] = it.body
		}
		pct := (i + 1) * 100 / len(items)
		out = append(out, ports.Frame{Type: ports.BinaryFrame, Data: []byte("PROGRESS;" + strconv.Itoa(pct))})
	}
	return append(out, status(domain.StatusUntarred)...)
}

func (s *FS) childrenLocked(dir string) []string {
	var out []string
	isChild := func(name string) bool { return name != dir && path.Dir(name) == dir }
	for name := range s.dirs {
		if isChild(name) {
			out = append(out, name)
		}
	}
	for name := range s.files {
		if isChild(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *FS) mkdirAllLocked(p string) {
	for p != "/" && p != "." && !s.dirs[p] {
		s.dirs[p] = true
		p = path.Dir(p)
	}
}

func clean(p string) string {
	return path.Clean("/" + p)
}

func status(code domain.Status) []ports.Frame {
	return []ports.Frame{{Type: ports.BinaryFrame, Data: []byte(code)}}
}
