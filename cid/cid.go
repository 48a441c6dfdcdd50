// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package cid decodes CID bins: the object-container format used for
// most Northlight game-object files. Grounded on
// torchbearer/northlight_internal/binfile.py's BinFileCID.
package cid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/northlight-forge/nlarc/datastream"
	"github.com/northlight-forge/nlarc/internal/bytestream"
)

// Form is the three framing styles a CID bin's element table can use
// (spec.md §4.8).
type Form int

const (
	FormSimple Form = iota
	FormKStructured
	FormKStructuredV2
)

func (f Form) String() string {
	switch f {
	case FormKStructured:
		return "kStructured"
	case FormKStructuredV2:
		return "kStructuredV2"
	default:
		return "kSimple"
	}
}

// ErrTooSmall is returned when a CID bin is smaller than its 16-byte
// fixed header.
var ErrTooSmall = errors.New("cid: data too small for header")

// Reader is a decoded CID bin header, ready to yield its elements.
type Reader struct {
	Name            string
	Version         uint32
	ContentType     uint32
	NumElements     uint32
	Unknown         []byte
	Form            Form
	elementsStart   int64
	data            []byte
}

// Open parses a CID bin's 16-byte header (plus the 4-byte form peek) and
// determines which of the three element-table forms follows.
func Open(name string, data []byte) (*Reader, error) {
	if len(data) < 16 {
		return nil, ErrTooSmall
	}
	s := bytestream.New(data)
	version, err := s.U32()
	if err != nil {
		return nil, err
	}
	contentType, err := s.U32()
	if err != nil {
		return nil, err
	}
	numElements, err := s.U32()
	if err != nil {
		return nil, err
	}
	unko, err := s.Read(4)
	if err != nil {
		return nil, err
	}
	form := FormSimple
	if numElements != 0 {
		peek, err := s.Peek(4)
		if err == nil {
			switch bigEndianU32(peek) {
			case 0xDEADBEEF:
				form = FormKStructured
			case 0xD34DB33F:
				form = FormKStructuredV2
			}
		}
	}
	return &Reader{
		Name: name, Version: version, ContentType: contentType,
		NumElements: numElements, Unknown: unko, Form: form,
		elementsStart: s.Tell(), data: data,
	}, nil
}

func bigEndianU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// EstimatedElementSize is (size-16)/num_elements when that division is
// exact, used as a sanity check for kSimple dispatch (binfile.py's ees
// property).
func (r *Reader) EstimatedElementSize() (int, bool) {
	if r.NumElements == 0 {
		return 0, true
	}
	rem := len(r.data) - 16
	if rem%int(r.NumElements) != 0 {
		return 0, false
	}
	return rem / int(r.NumElements), true
}

// SimpleDecoder decodes one kSimple-form element given the element
// stream, the declared object type name, and the bin's version.
type SimpleDecoder func(s *bytestream.Stream, typeName string, version uint32) (any, error)

// SimpleDispatch maps (type_name_lowercased, version) to a decoder for
// the kSimple form, where no container framing names each record
// out-of-band (spec.md §4.8).
type SimpleDispatch struct {
	decoders map[string]SimpleDecoder
}

// NewSimpleDispatch creates an empty dispatch table.
func NewSimpleDispatch() *SimpleDispatch {
	return &SimpleDispatch{decoders: map[string]SimpleDecoder{}}
}

func simpleKey(typeName string, version uint32) string {
	return fmt.Sprintf("%s/%d", strings.ToLower(typeName), version)
}

// Register binds (typeName, version) to decoder.
func (d *SimpleDispatch) Register(typeName string, version uint32, decoder SimpleDecoder) {
	d.decoders[simpleKey(typeName, version)] = decoder
}

// UnknownElement is yielded for an element whose (type, version) has no
// registered decoder, or whose decode failed partway through.
type UnknownElement struct {
	TypeName string
	Version  uint32
	Index    int
	Raw      []byte
}

// Elements decodes r.NumElements elements of typeName, dispatching
// through dispatch for kSimple or through reg for kStructured/
// kStructuredV2. Decode failures downgrade an element to
// UnknownElement rather than aborting the whole bin.
func (r *Reader) Elements(typeName string, dispatch *SimpleDispatch, reg *datastream.Registry) ([]any, error) {
	s := bytestream.New(r.data)
	if _, err := s.Seek(r.elementsStart, bytestream.SeekStart); err != nil {
		return nil, err
	}
	out := make([]any, 0, r.NumElements)
	for i := 0; i < int(r.NumElements); i++ {
		start := s.Tell()
		var obj any
		var err error
		switch r.Form {
		case FormSimple:
			decoder, ok := dispatch.decoders[simpleKey(typeName, r.Version)]
			if !ok {
				err = fmt.Errorf("cid: no simple decoder for %s v%d", typeName, r.Version)
			} else {
				obj, err = decoder(s, typeName, r.Version)
			}
		default:
			obj, err = reg.ProcessAt(s)
		}
		if err != nil {
			raw, _ := s.ReadAt(start, len(r.data)-int(start))
			out = append(out, UnknownElement{TypeName: typeName, Version: r.Version, Index: i, Raw: raw})
			return out, nil // mirrors binfile.py: stop yielding on the first failure
		}
		out = append(out, obj)
	}
	return out, nil
}
