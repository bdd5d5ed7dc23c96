// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package codepage

import "testing"

func TestPassthroughByDefault(t *testing.T) {
	enc, err := Lookup("")
	if err != nil || enc != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", enc, err)
	}
	b, err := Encode("hello.txt", enc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(b) != "hello.txt" {
		t.Errorf("got %q, want %q", b, "hello.txt")
	}
}

func TestGBKRoundTrip(t *testing.T) {
	enc, err := Lookup("gbk")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	name := "档案.txt"
	raw, err := Encode(name, enc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw, enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != name {
		t.Errorf("got %q, want %q", got, name)
	}
}

func TestUnknownCodepage(t *testing.T) {
	if _, err := Lookup("bogus"); err == nil {
		t.Fatalf("expected error for unknown codepage")
	}
}
