// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package codepage provides optional filename transcoding for archive
// entry names. By default names pass through as raw UTF-8 bytes,
// preserving the source tool's "raw locale bytes" behavior; callers
// that need the historical codepage-transcoding behavior can opt in
// explicitly by naming an encoding.
package codepage

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// named lists the codepages the CLI accepts by name; "" and "none" are
// not listed here and are handled by Lookup as passthrough.
var named = map[string]encoding.Encoding{
	"gbk":       simplifiedchinese.GBK,
	"gb18030":   simplifiedchinese.GB18030,
	"big5":      traditionalchinese.Big5,
	"shift-jis": japanese.ShiftJIS,
	"euc-kr":    korean.EUCKR,
}

// Lookup resolves a codepage name to an encoding.Encoding. "" or "none"
// returns (nil, nil), meaning passthrough.
func Lookup(name string) (encoding.Encoding, error) {
	if name == "" || name == "none" {
		return nil, nil
	}
	enc, ok := named[name]
	if !ok {
		return nil, fmt.Errorf("codepage: unknown codepage %q", name)
	}
	return enc, nil
}

// Encode converts name from UTF-8 to enc's bytes. A nil enc passes name
// through unchanged.
func Encode(name string, enc encoding.Encoding) ([]byte, error) {
	if enc == nil {
		return []byte(name), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("codepage: encode: %w", err)
	}
	return out, nil
}

// Decode converts raw bytes in enc's codepage to a UTF-8 string. A nil
// enc passes the bytes through unchanged.
func Decode(raw []byte, enc encoding.Encoding) (string, error) {
	if enc == nil {
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("codepage: decode: %w", err)
	}
	return string(out), nil
}
