// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package entry defines the fixed-size per-file index record stored in a
// PACu archive.
package entry

import (
	"encoding/binary"
	"fmt"
)

// Size is the exact on-disk size of an Entry: a 64-byte name field plus
// three little-endian u32 fields. Any change to the field layout breaks
// archive compatibility.
const Size = 0x4C // 76

const nameFieldLen = 0x40 // 64

// ErrNameTooLong is returned by SetName when name (plus its NUL
// terminator) does not fit in the 64-byte name field.
var ErrNameTooLong = fmt.Errorf("entry: name exceeds %v bytes including NUL terminator", nameFieldLen)

// Entry is one 76-byte record naming a packed file and locating its
// payload. It is a pure value type; there are no invariants beyond the
// fixed layout asserted by Size.
type Entry struct {
	name           [nameFieldLen]byte
	Position       uint32
	OriginalSize   uint32
	CompressedSize uint32
}

// SetName copies name into the record's NUL-terminated name field. It
// fails if name is longer than 63 bytes (64 or more bytes would leave no
// room for the terminator).
func (e *Entry) SetName(name []byte) error {
	if len(name) > nameFieldLen-1 {
		return ErrNameTooLong
	}
	var buf [nameFieldLen]byte
	copy(buf[:], name)
	e.name = buf
	return nil
}

// Name returns the record's name field up to (not including) its NUL
// terminator.
func (e *Entry) Name() []byte {
	n := 0
	for n < nameFieldLen && e.name[n] != 0 {
		n++
	}
	out := make([]byte, n)
	copy(out, e.name[:n])
	return out
}

// MarshalBinary writes the entry as exactly Size little-endian bytes.
func (e *Entry) MarshalBinary() []byte {
	buf := make([]byte, Size)
	copy(buf[:nameFieldLen], e.name[:])
	binary.LittleEndian.PutUint32(buf[0x40:0x44], e.Position)
	binary.LittleEndian.PutUint32(buf[0x44:0x48], e.OriginalSize)
	binary.LittleEndian.PutUint32(buf[0x48:0x4C], e.CompressedSize)
	return buf
}

// Unmarshal reads one Entry from the first Size bytes of buf.
func Unmarshal(buf []byte) (Entry, error) {
	var e Entry
	if len(buf) < Size {
		return e, fmt.Errorf("entry: short record: got %v bytes, want %v", len(buf), Size)
	}
	copy(e.name[:], buf[:nameFieldLen])
	e.Position = binary.LittleEndian.Uint32(buf[0x40:0x44])
	e.OriginalSize = binary.LittleEndian.Uint32(buf[0x44:0x48])
	e.CompressedSize = binary.LittleEndian.Uint32(buf[0x48:0x4C])
	return e, nil
}

// Stored reports whether the entry's two size fields are equal, which
// per the archive format means the payload was written uncompressed
// (either by extension opt-out or because method was store) and should
// be read back without invoking a decompressor.
func (e *Entry) Stored() bool {
	return e.OriginalSize == e.CompressedSize
}
