// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitio

import "testing"

func TestRoundTrip(t *testing.T) {
	type write struct {
		n int
		v uint32
	}
	for i, tc := range []struct {
		writes []write
	}{
		{[]write{{8, 0xAB}}},
		{[]write{{1, 1}, {1, 0}, {1, 1}, {1, 1}, {8, 0x5a}}},
		{[]write{{32, 0xDEADBEEF}}},
		{[]write{{3, 0x7}, {5, 0x11}, {13, 0x1fff}, {17, 0x1ffff}}},
		{[]write{{9, 0b110111001}}},
	} {
		w := NewWriter(0)
		for _, wr := range tc.writes {
			w.PutBits(wr.n, wr.v)
		}
		buf := w.Flush()

		r := NewReader(buf)
		for j, wr := range tc.writes {
			got, ok := r.GetBits(wr.n)
			if !ok {
				t.Fatalf("case %v write %v: unexpected exhaustion", i, j)
			}
			want := wr.v & ((1 << uint(wr.n)) - 1)
			if wr.n == 32 {
				want = wr.v
			}
			if got != want {
				t.Errorf("case %v write %v: got %#x, want %#x", i, j, got, want)
			}
		}
	}
}

func TestFlushOmitsEmptyByte(t *testing.T) {
	w := NewWriter(0)
	w.PutBits(8, 0xFF)
	buf := w.Flush()
	if len(buf) != 1 {
		t.Fatalf("got %v bytes, want 1", len(buf))
	}
}

func TestFlushNoBitsWritten(t *testing.T) {
	w := NewWriter(0)
	buf := w.Flush()
	if len(buf) != 0 {
		t.Fatalf("got %v bytes, want 0", len(buf))
	}
}

func TestUnderrun(t *testing.T) {
	w := NewWriter(0)
	w.PutBits(4, 0xA)
	buf := w.Flush()

	r := NewReader(buf)
	if _, ok := r.GetBits(4); !ok {
		t.Fatalf("expected first read to succeed")
	}
	if _, ok := r.GetBits(8); ok {
		t.Fatalf("expected exhaustion on second read")
	}
	if !r.Exhausted() {
		t.Fatalf("expected reader to report exhaustion")
	}
}
