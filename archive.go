// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pacu implements the PACu archive format: a flat container of
// files, each optionally compressed, indexed by a trailing obfuscated
// Huffman-coded table of fixed-size entry records.
package pacu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cosnicolaou/pacu/internal/codec"
)

// Magic is the 4 bytes every archive begins with. Readers only check
// the first three ("PAC"); the fourth byte is accepted as-is, a
// compatibility widening inherited from the tool this format comes
// from.
var Magic = [4]byte{'P', 'A', 'C', 'u'}

const (
	headerSize = 12 // magic(4) + entry_count(4) + compression(4)
	tailSize   = 4  // obf_index_size(4)
)

// Sentinel errors for failures that abort pack/unpack outright, as
// opposed to per-file failures which are logged and skipped.
var (
	ErrBadMagic       = errors.New("pacu: bad magic number")
	ErrIndexTruncated = errors.New("pacu: index region shorter than declared")
	ErrNameTooLong    = errors.New("pacu: entry name too long, skipped")
)

// Header is the fixed 12-byte prefix of an archive.
type Header struct {
	EntryCount uint32
	Method     codec.Method
}

func (h Header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Method))
	return buf
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("pacu: header too short: %v bytes", len(buf))
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] {
		return Header{}, ErrBadMagic
	}
	return Header{
		EntryCount: binary.LittleEndian.Uint32(buf[4:8]),
		Method:     codec.Method(binary.LittleEndian.Uint32(buf[8:12])),
	}, nil
}

// obfuscate bitwise-NOTs every byte of buf in place and returns it. It
// is its own inverse.
func obfuscate(buf []byte) []byte {
	for i, b := range buf {
		buf[i] = ^b
	}
	return buf
}

func putUint32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

func getUint32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

// Progress reports the completion of a single entry during pack or
// unpack, for driving a progress bar or similar.
type Progress struct {
	Duration       time.Duration
	Name           string
	OriginalSize   int
	CompressedSize int
	Err            error
}
