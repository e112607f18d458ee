// Package archive implements the read-only container consulted first by
// the resource loader. An archive is a flat, name-indexed set of blobs in
// a single buffer:
//
//	magic "KLN1"
//	uint32 entry count
//	per entry: uint32 name length, name bytes, uint32 size, uint32 offset
//	blob data
//
// All integers are big-endian. Offsets are absolute positions in the
// buffer. The buffer is owned by the caller and must outlive the archive;
// FindEntry returns views into it, not copies.
package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

const magic = "KLN1"

type entry struct {
	offset uint32
	size   uint32
}

// Archive is a parsed, indexed view over an archive buffer.
type Archive struct {
	index map[string]entry
	data  []byte
}

// Wrap validates buf and builds the name index. The buffer is not copied.
func Wrap(buf []byte) (*Archive, error) {
	if len(buf) < len(magic)+4 {
		return nil, fmt.Errorf("archive too short: %d bytes", len(buf))
	}
	if string(buf[:len(magic)]) != magic {
		return nil, fmt.Errorf("bad archive magic %q", buf[:len(magic)])
	}

	pos := len(magic)
	count := binary.BigEndian.Uint32(buf[pos:])
	pos += 4

	a := &Archive{
		index: make(map[string]entry, count),
		data:  buf,
	}

	for i := uint32(0); i < count; i++ {
		if pos+4 > len(buf) {
			return nil, fmt.Errorf("truncated archive: entry %d header", i)
		}
		nameLen := int(binary.BigEndian.Uint32(buf[pos:]))
		pos += 4

		if pos+nameLen+8 > len(buf) {
			return nil, fmt.Errorf("truncated archive: entry %d name", i)
		}
		name := string(buf[pos : pos+nameLen])
		pos += nameLen

		size := binary.BigEndian.Uint32(buf[pos:])
		offset := binary.BigEndian.Uint32(buf[pos+4:])
		pos += 8

		if int(offset)+int(size) > len(buf) {
			return nil, fmt.Errorf("truncated archive: entry %q data out of bounds", name)
		}
		a.index[name] = entry{offset: offset, size: size}
	}

	return a, nil
}

// FindEntry looks up a blob by its original resource name. The returned
// slice aliases the archive buffer.
func (a *Archive) FindEntry(name string) ([]byte, bool) {
	e, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.data[e.offset : e.offset+e.size], true
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.index)
}

// Names returns every entry name in lexical order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.index))
	for name := range a.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Write serialises entries into the archive format. Entries are laid out
// in lexical name order so the output is deterministic.
func Write(w io.Writer, entries map[string][]byte) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	// Header size decides where blob data starts.
	headerSize := len(magic) + 4
	for _, name := range names {
		headerSize += 4 + len(name) + 8
	}

	var scratch [4]byte
	writeU32 := func(v uint32) error {
		binary.BigEndian.PutUint32(scratch[:], v)
		_, err := w.Write(scratch[:])
		return err
	}

	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	if err := writeU32(uint32(len(names))); err != nil {
		return err
	}

	offset := uint32(headerSize)
	for _, name := range names {
		if err := writeU32(uint32(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}
		if err := writeU32(uint32(len(entries[name]))); err != nil {
			return err
		}
		if err := writeU32(offset); err != nil {
			return err
		}
		offset += uint32(len(entries[name]))
	}

	for _, name := range names {
		if _, err := w.Write(entries[name]); err != nil {
			return err
		}
	}
	return nil
}
