// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dpfile

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/northlight-forge/nlarc/internal/bytestream"
	"github.com/northlight-forge/nlarc/log"
)

// buildV1 assembles a minimal v1-header dp_ file: one "values" offset
// pointing at a single 4-byte data region.
func buildV1(t *testing.T) []byte {
	t.Helper()
	var buf []byte
	put32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); buf = append(buf, b...) }

	put32(1) // values count
	put32(0) // string count
	put32(4) // dataSize
	buf = append(buf, make([]byte, 8)...) // unknown

	put32(1) // offset word: bit_offset=0, flags=1 (no overlap) -> effective offset 0

	put32(777) // the 4-byte data region itself
	return buf
}

func TestParseV1HeaderAndGet(t *testing.T) {
	data := buildV1(t)
	f, err := Parse("test.dp_", data, log.NewStdLogger(os.Stderr))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Variant != V1 {
		t.Fatalf("Variant = %v, want V1", f.Variant)
	}
	if f.DataSize != 4 {
		t.Fatalf("DataSize = %d, want 4", f.DataSize)
	}
	if f.DataStart != int64(len(data))-4 {
		t.Fatalf("DataStart = %d, want %d", f.DataStart, len(data)-4)
	}

	readU32 := func(s *bytestream.Stream) (any, error) {
		le := bytestream.LittleEndian
		v, err := s.Uint(4, &le)
		return uint32(v), err
	}

	got := f.Get(1, false, readU32)
	v, ok := got.(uint32)
	if !ok || v != 777 {
		t.Fatalf("Get(1) = %#v, want uint32(777)", got)
	}

	list := f.GetList(1, 1, readU32)
	if len(list) != 1 || list[0].(uint32) != 777 {
		t.Fatalf("GetList(1,1) = %#v, want [777]", list)
	}
}

func TestGetWithNoFlagsReturnsEmptyString(t *testing.T) {
	data := buildV1(t)
	f, err := Parse("test.dp_", data, log.NewStdLogger(os.Stderr))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	readU32 := func(s *bytestream.Stream) (any, error) {
		le := bytestream.LittleEndian
		v, err := s.Uint(4, &le)
		return uint32(v), err
	}
	got := f.Get(0, false, readU32)
	if got != "" {
		t.Fatalf("Get(0) = %#v, want \"\"", got)
	}
}

func TestParseRejectsUnknownHeader(t *testing.T) {
	bad := make([]byte, 16)
	for i := range bad {
		bad[i] = 0xFF
	}
	if _, err := Parse("bad.dp_", bad, log.NewStdLogger(os.Stderr)); err != ErrUnknownHeader {
		t.Fatalf("err = %v, want ErrUnknownHeader", err)
	}
}
