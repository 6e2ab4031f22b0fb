package fs

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/exzackly/exzos/disk"
)

// separator splits the fields of a directory payload. It sits in the ASCII
// control range so it never appears in a valid filename.
const separator = 0x1F

// Entry is the decoded payload of a directory block.
type Entry struct {
	Name    string
	Size    int
	Created string

	// Location is the directory block holding the entry.
	Location disk.Location

	// Head is the first data block, zero when the file is empty.
	Head disk.Location
}

func (e Entry) encode() []byte {
	var buf bytes.Buffer

	buf.WriteString(e.Name)
	buf.WriteByte(separator)
	buf.WriteString(strconv.Itoa(e.Size))
	buf.WriteByte(separator)
	buf.WriteString(e.Created)

	return buf.Bytes()
}

func decodeEntry(loc disk.Location, b disk.Block) (Entry, bool) {
	payload := bytes.TrimRight(b.Payload(), "\x00")

	parts := bytes.Split(payload, []byte{separator})
	if len(parts) != 3 {
		return Entry{}, false
	}

	size, err := strconv.Atoi(string(parts[1]))
	if err != nil || size < 0 {
		return Entry{}, false
	}

	return Entry{
		Name:     string(parts[0]),
		Size:     size,
		Created:  string(parts[2]),
		Location: loc,
		Head:     b.Next(),
	}, true
}

func validName(name string) error {
	if name == "" || strings.IndexByte(name, separator) != -1 || strings.IndexByte(name, 0) != -1 {
		return ErrInvalidFilename
	}

	if len(name) > MaxFilename {
		return ErrFilenameTooLong
	}

	return nil
}

// Hidden reports whether a short listing leaves name out.
func Hidden(name string) bool {
	return strings.HasPrefix(name, ProgramPrefix) || strings.HasPrefix(name, HiddenPrefix)
}
