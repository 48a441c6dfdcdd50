// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bytestream

import (
	"bytes"
	"testing"
)

func TestReadPastEndReturnsOutOfBounds(t *testing.T) {
	s := New([]byte{1, 2, 3})
	if _, err := s.Read(4); err == nil {
		t.Fatalf("Read(4) on a 3-byte stream should fail")
	}
}

func TestAmbientIntRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int64
	}{
		{"little-endian-4", []byte{0x01, 0x00, 0x00, 0x00}, 1},
		{"little-endian-4-large", []byte{0xff, 0xff, 0xff, 0x7f}, 0x7fffffff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.data)
			got, err := s.AmbientInt()
			if err != nil {
				t.Fatalf("AmbientInt() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("AmbientInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNullTerminatedStringMinLen(t *testing.T) {
	s := New([]byte{'a', 'b', 0x00, 'c'})
	got, err := s.NullTerminatedString(1)
	if err != nil {
		t.Fatalf("NullTerminatedString() failed: %v", err)
	}
	if got != "ab" {
		t.Errorf("NullTerminatedString() = %q, want %q", got, "ab")
	}
	if s.Tell() != 3 {
		t.Errorf("Tell() after NullTerminatedString() = %d, want 3", s.Tell())
	}
}

func TestScopedOverrideRestoresState(t *testing.T) {
	s := New([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	s.Endian = LittleEndian
	s.Signed = false
	s.Size = 4
	s.BlobLen = 4
	_, _ = s.Seek(2, SeekStart)

	restore := s.EnterScope(WithEndian(BigEndian), WithSigned(true), WithSize(8), WithBlobLen(1))
	if s.Endian != BigEndian || !s.Signed || s.Size != 8 || s.BlobLen != 1 {
		t.Fatalf("scope did not apply overrides")
	}
	restore()

	if s.Endian != LittleEndian {
		t.Errorf("Endian not restored: got %v", s.Endian)
	}
	if s.Signed {
		t.Errorf("Signed not restored")
	}
	if s.Size != 4 {
		t.Errorf("Size not restored: got %d", s.Size)
	}
	if s.BlobLen != 4 {
		t.Errorf("BlobLen not restored: got %d", s.BlobLen)
	}
	if s.Tell() != 2 {
		t.Errorf("position not restored: got %d", s.Tell())
	}
}

func TestSeekScopeRestoresPositionOnSuccessAndFailure(t *testing.T) {
	s := New(make([]byte, 16))
	_, _ = s.Seek(5, SeekStart)

	restore, err := s.SeekScope(10)
	if err != nil {
		t.Fatalf("SeekScope() failed: %v", err)
	}
	if s.Tell() != 10 {
		t.Fatalf("SeekScope() did not seek, pos = %d", s.Tell())
	}
	restore()
	if s.Tell() != 5 {
		t.Errorf("restore() did not restore position, got %d", s.Tell())
	}

	if _, err := s.SeekScope(100); err == nil {
		t.Fatalf("SeekScope(100) on a 16-byte stream succeeded")
	}
	if s.Tell() != 5 {
		t.Errorf("failed SeekScope() moved position to %d", s.Tell())
	}
}

func TestReadLZ4BlockUncompressedPassthrough(t *testing.T) {
	payload := []byte("hello world, this is uncompressed")
	s := New(payload)
	got, err := s.ReadLZ4Block(0, len(payload), false, -1)
	if err != nil {
		t.Fatalf("ReadLZ4Block() failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadLZ4Block() = %q, want %q", got, payload)
	}
}

func TestFloat16ToFloat32KnownValues(t *testing.T) {
	tests := []struct {
		bits uint16
		want float32
	}{
		{0x3C00, 1.0},
		{0xC000, -2.0},
		{0x0000, 0.0},
	}
	for _, tt := range tests {
		got := float16ToFloat32(tt.bits)
		if got != tt.want {
			t.Errorf("float16ToFloat32(%#04x) = %v, want %v", tt.bits, got, tt.want)
		}
	}
}
