package domain

import (
	"path"
	"strconv"
	"strings"
)

// Delimiter separates the fields of every text frame.
const Delimiter = ";"

// Verb is the first field of a file-system command frame.
type Verb string

const (
	VerbFetch     Verb = "FETCH"
	VerbWrite     Verb = "WRITE"
	VerbOverwrite Verb = "OVERWRITE"
	VerbDelete    Verb = "DELETE"
	VerbUntar     Verb = "UNTAR"
	VerbUpdate    Verb = "UPDATE"
)

// Command is a file-system request. It is encoded as exactly one frame.
type Command struct {
	Verb Verb
	Path string

	// Directory is encoded as the third field when set.
	Directory *bool

	// Size is encoded as the fourth field when set (uploads only).
	Size *int64
}

// Encode renders the command as VERB;path[;isDirectory[;size]].
func (c Command) Encode() []byte {
	var b strings.Builder
	b.WriteString(string(c.Verb))
	b.WriteString(Delimiter)
	b.WriteString(c.Path)
	if c.Directory != nil {
		b.WriteString(Delimiter)
		b.WriteString(strconv.FormatBool(*c.Directory))
		if c.Size != nil {
			b.WriteString(Delimiter)
			b.WriteString(strconv.FormatInt(*c.Size, 10))
		}
	}
	return []byte(b.String())
}

// String returns the encoded command.
func (c Command) String() string {
	return string(c.Encode())
}

// FetchCommand lists a directory or downloads a file.
func FetchCommand(p string, directory bool) Command {
	return Command{Verb: VerbFetch, Path: p, Directory: &directory}
}

// WriteCommand announces an upload of size bytes.
func WriteCommand(p string, overwrite bool, size int64) Command {
	verb := VerbWrite
	if overwrite {
		verb = VerbOverwrite
	}
	directory := false
	return Command{Verb: verb, Path: p, Directory: &directory, Size: &size}
}

// MkdirCommand creates a directory.
func MkdirCommand(p string) Command {
	directory := true
	return Command{Verb: VerbWrite, Path: p, Directory: &directory}
}

// DeleteCommand deletes a file or, recursively, a directory.
func DeleteCommand(p string, directory bool) Command {
	return Command{Verb: VerbDelete, Path: p, Directory: &directory}
}

// UntarCommand extracts a tar archive in place.
func UntarCommand(p string) Command {
	return Command{Verb: VerbUntar, Path: p}
}

// UpdateCommand flashes the firmware image at p.
func UpdateCommand(p string) Command {
	return Command{Verb: VerbUpdate, Path: p}
}

// JoinPath joins a directory and an entry name into an absolute device path.
func JoinPath(dir, name string) string {
	return path.Join("/", dir, name)
}

// BaseName returns the part of a device path after the last slash.
func BaseName(name string) string {
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return name
	}
	return name[i+1:]
}
