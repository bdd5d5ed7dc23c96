// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package codec implements the payload compressor adapter: a uniform
// interface over store/zlib/zstd, plus the filename-extension opt-out
// that forces a payload to be stored uncompressed.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/DataDog/zstd"
	"github.com/klauspost/compress/zlib"
)

// Method identifies a compression scheme by the id persisted in the
// archive header.
type Method uint32

// The three compression methods a PACu archive can name.
const (
	MethodStore Method = 0
	MethodZlib  Method = 4
	MethodZstd  Method = 7
)

// zstdMaxLevel is zstd's highest compression level (ZSTD_maxCLevel()),
// used for every zstd payload.
const zstdMaxLevel = 22

func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodZlib:
		return "zlib"
	case MethodZstd:
		return "zstd"
	default:
		return fmt.Sprintf("method(%d)", uint32(m))
	}
}

// ParseMethod maps the CLI's string method names onto a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "no", "store", "none":
		return MethodStore, nil
	case "zlib":
		return MethodZlib, nil
	case "zstd":
		return MethodZstd, nil
	}
	return 0, fmt.Errorf("codec: unknown compression method %q", s)
}

// optOutExtensions are the case-sensitive extensions that force a
// payload to be stored uncompressed regardless of the chosen method.
var optOutExtensions = map[string]bool{
	".ogg": true,
	".png": true,
	".wav": true,
	".fnt": true,
}

// ShouldStore reports whether name's extension forces uncompressed
// storage, overriding whatever Method the caller would otherwise use.
func ShouldStore(name string) bool {
	return optOutExtensions[filepath.Ext(name)]
}

// Adapter compresses and decompresses payloads for a single Method. The
// zlib level is configurable because the archive format's two write
// paths historically use different levels for the same method: the
// single-threaded path uses the library default, the worker-pool path
// uses best compression.
type Adapter struct {
	ZlibLevel int
}

// NewAdapter returns an Adapter using zlib's default compression level.
func NewAdapter() *Adapter {
	return &Adapter{ZlibLevel: zlib.DefaultCompression}
}

// Compress encodes src with method, honoring the extension opt-out for
// name. It returns the resulting blob and its length (the two are
// always consistent; compressedSize is provided separately to mirror
// the C ABI this adapter models).
func (a *Adapter) Compress(method Method, name string, src []byte) (blob []byte, originalSize, compressedSize int, err error) {
	if ShouldStore(name) {
		return src, len(src), len(src), nil
	}
	switch method {
	case MethodStore:
		return src, len(src), len(src), nil
	case MethodZlib:
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, a.ZlibLevel)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("codec: zlib writer: %w", err)
		}
		if _, err := w.Write(src); err != nil {
			return nil, 0, 0, fmt.Errorf("codec: zlib compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, 0, 0, fmt.Errorf("codec: zlib close: %w", err)
		}
		return buf.Bytes(), len(src), buf.Len(), nil
	case MethodZstd:
		out, err := zstd.CompressLevel(nil, src, zstdMaxLevel)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("codec: zstd compress: %w", err)
		}
		return out, len(src), len(out), nil
	}
	return nil, 0, 0, fmt.Errorf("codec: unknown method %v", method)
}

// Decompress reverses Compress. When originalSize == len(src) the blob
// is assumed to have been stored uncompressed (either by opt-out or
// method store) and is returned unmodified, regardless of method. This
// mirrors the archive reader's "equal sizes => read directly" rule.
func (a *Adapter) Decompress(method Method, src []byte, originalSize int) ([]byte, error) {
	if originalSize == len(src) {
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}
	switch method {
	case MethodStore:
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	case MethodZlib:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("codec: zlib reader: %w", err)
		}
		defer r.Close()
		out := make([]byte, 0, originalSize)
		buf := make([]byte, 32*1024)
		for {
			n, rerr := r.Read(buf)
			if n > 0 {
				out = append(out, buf[:n]...)
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return nil, fmt.Errorf("codec: zlib decompress: %w", rerr)
			}
		}
		return out, nil
	case MethodZstd:
		out, err := zstd.Decompress(make([]byte, 0, originalSize), src)
		if err != nil {
			return nil, fmt.Errorf("codec: zstd decompress: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("codec: unknown method %v", method)
}
