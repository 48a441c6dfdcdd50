// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cid

import (
	"encoding/binary"
	"testing"

	"github.com/northlight-forge/nlarc/internal/bytestream"
)

func put32(buf *[]byte, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	*buf = append(*buf, b...)
}

func TestOpenDetectsSimpleForm(t *testing.T) {
	var data []byte
	put32(&data, 3)  // version
	put32(&data, 7)  // contentType
	put32(&data, 2)  // numElements
	data = append(data, 0, 0, 0, 0) // unknown
	data = append(data, 0xAA, 0xAA, 0xAA, 0xAA) // not a container magic
	data = append(data, make([]byte, 12)...)

	r, err := Open("cid_test.bin", data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Form != FormSimple {
		t.Fatalf("Form = %v, want FormSimple", r.Form)
	}
	if r.NumElements != 2 || r.Version != 3 || r.ContentType != 7 {
		t.Fatalf("got %+v", r)
	}
}

func TestOpenDetectsStructuredForm(t *testing.T) {
	var data []byte
	put32(&data, 1)
	put32(&data, 1)
	put32(&data, 1)
	data = append(data, 0, 0, 0, 0)
	data = append(data, 0xDE, 0xAD, 0xBE, 0xEF) // magicV1, big-endian on the wire
	data = append(data, make([]byte, 16)...)

	r, err := Open("cid_test.bin", data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Form != FormKStructured {
		t.Fatalf("Form = %v, want FormKStructured", r.Form)
	}
}

func TestElementsFallsBackToUnknownOnDecodeFailure(t *testing.T) {
	var data []byte
	put32(&data, 1)
	put32(&data, 1)
	put32(&data, 2)
	data = append(data, 0, 0, 0, 0)
	data = append(data, make([]byte, 8)...) // two dummy 4-byte "simple" elements

	r, err := Open("cid_test.bin", data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	dispatch := NewSimpleDispatch()
	dispatch.Register("widget", 1, func(s *bytestream.Stream, typeName string, version uint32) (any, error) {
		return s.U32()
	})
	els, err := r.Elements("gadget", dispatch, nil)
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	if len(els) != 1 {
		t.Fatalf("len(els) = %d, want 1", len(els))
	}
	if _, ok := els[0].(UnknownElement); !ok {
		t.Fatalf("els[0] = %T, want UnknownElement", els[0])
	}
}

func TestEstimatedElementSize(t *testing.T) {
	var data []byte
	put32(&data, 1)
	put32(&data, 1)
	put32(&data, 4)
	data = append(data, 0, 0, 0, 0)
	data = append(data, make([]byte, 32)...) // remaining = 32, /4 = 8

	r, err := Open("cid_test.bin", data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	size, ok := r.EstimatedElementSize()
	if !ok || size != 8 {
		t.Fatalf("EstimatedElementSize() = (%d, %v), want (8, true)", size, ok)
	}
}
