// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package datastream

import (
	"fmt"

	"github.com/northlight-forge/nlarc/internal/bytestream"
)

// FieldError reports which declared field of a Binder-driven object
// failed, at what starting offset, and a hex dump of the bytes consumed
// so far (spec.md §4.7: "the error includes the declared field name, the
// offset, and a hex dump of the bytes consumed"). Grounded on
// cid_base.py/bytetools.py's StreamObject/ByteStreamField error
// reporting.
type FieldError struct {
	Field  string
	Offset int64
	Dump   string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q at offset %d: %v\n%s", e.Field, e.Offset, e.Err, e.Dump)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Binder drives the ordered, fail-fast population of a datastream
// decoder's fields from a Stream, the Go counterpart of
// bytetools.py's StreamObject + ByteStreamField descriptor machinery.
// Concrete decoders call Binder methods in declaration order; Binder
// itself never panics, it records enough context for FieldError on the
// first failure.
type Binder struct {
	S     *bytestream.Stream
	start int64
	err   *FieldError
}

// NewBinder starts a binder over s, recording the current position as
// the object's start-of-stream marker.
func NewBinder(s *bytestream.Stream) *Binder {
	return &Binder{S: s, start: s.Tell()}
}

// Err returns the first field failure encountered, or nil.
func (b *Binder) Err() error {
	if b.err == nil {
		return nil
	}
	return b.err
}

func (b *Binder) fail(field string, err error) {
	if b.err != nil || err == nil {
		return
	}
	n := int(b.S.Tell() - b.start)
	dump, _ := b.S.PeekSkip(-int64(n), n)
	b.err = &FieldError{Field: field, Offset: b.start, Dump: bytestream.New(dump).HexDump(n), Err: err}
}

// ok reports whether the binder is still error-free; once a field
// fails, every subsequent binder call becomes a no-op so that decoders
// can call methods unconditionally in sequence.
func (b *Binder) ok() bool { return b.err == nil }

// Bytes reads n raw bytes (StreamFields.bytes).
func (b *Binder) Bytes(field string, n int) []byte {
	if !b.ok() {
		return nil
	}
	v, err := b.S.Read(n)
	b.fail(field, err)
	return v
}

// Int reads a signed integer of the given size using the stream's
// ambient endian unless endian is non-nil (StreamFields.int/sint).
func (b *Binder) Int(field string, size int, endian *bytestream.Endian) int64 {
	if !b.ok() {
		return 0
	}
	v, err := b.S.Int(size, endian)
	b.fail(field, err)
	return v
}

// Uint reads an unsigned integer of the given size (StreamFields.uint).
func (b *Binder) Uint(field string, size int, endian *bytestream.Endian) uint64 {
	if !b.ok() {
		return 0
	}
	v, err := b.S.Uint(size, endian)
	b.fail(field, err)
	return v
}

// Float reads a 2, 4, or 8-byte IEEE 754 float (StreamFields.float).
func (b *Binder) Float(field string, size int) float64 {
	if !b.ok() {
		return 0
	}
	var v float32
	var err error
	var v64 float64
	switch size {
	case 2:
		v, err = b.S.F16()
		v64 = float64(v)
	case 4:
		v, err = b.S.F32()
		v64 = float64(v)
	case 8:
		v64, err = b.S.F64()
	default:
		err = fmt.Errorf("datastream: unsupported float size %d", size)
	}
	b.fail(field, err)
	return v64
}

// Bool reads one byte as a boolean (StreamFields.bool).
func (b *Binder) Bool(field string) bool {
	if !b.ok() {
		return false
	}
	v, err := b.S.Bool()
	b.fail(field, err)
	return v
}

// Str reads a string: size==nil means null-terminated, *size==-1 means
// length-prefixed, otherwise a fixed-width field (StreamFields.str).
func (b *Binder) Str(field string, size *int) string {
	if !b.ok() {
		return ""
	}
	var v string
	var err error
	switch {
	case size == nil:
		v, err = b.S.NullTerminatedString(0)
	case *size == -1:
		v, err = b.S.LengthPrefixedString()
	default:
		v, err = b.S.FixedString(*size)
	}
	b.fail(field, err)
	return v
}

// NTS reads a null-terminated string (StreamFields.nts).
func (b *Binder) NTS(field string) string { return b.Str(field, nil) }

// IStr reads a length-prefixed string (StreamFields.istr).
func (b *Binder) IStr(field string) string {
	size := -1
	return b.Str(field, &size)
}

// CheckStr reads a string like Str and fails the binder if it does not
// equal expected (StreamFields.checkstr).
func (b *Binder) CheckStr(field, expected string, size *int) string {
	v := b.Str(field, size)
	if b.ok() && v != expected {
		b.fail(field, fmt.Errorf("expected %q, got %q", expected, v))
	}
	return v
}

// CRC reads 4 bytes and renders them as uppercase hex (StreamFields.crc).
func (b *Binder) CRC(field string) string {
	v := b.Bytes(field, 4)
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%X", v)
}

// Call invokes fn(stream) for an arbitrary custom read (StreamFields.call).
func (b *Binder) Call(field string, fn func(*bytestream.Stream) (any, error)) any {
	if !b.ok() {
		return nil
	}
	v, err := fn(b.S)
	b.fail(field, err)
	return v
}

// CallExtra invokes fn(extra) against out-of-band context passed into
// the decoder (StreamFields.callextra).
func (b *Binder) CallExtra(field string, fn func(any) (any, error), extra any) any {
	if !b.ok() {
		return nil
	}
	v, err := fn(extra)
	b.fail(field, err)
	return v
}

// CallSelf invokes fn(partial) against the object being built so far
// (StreamFields.callself).
func (b *Binder) CallSelf(field string, fn func(any) (any, error), partial any) any {
	if !b.ok() {
		return nil
	}
	v, err := fn(partial)
	b.fail(field, err)
	return v
}

// Iter reads a 4-byte little-endian count (unless length is non-nil)
// then invokes fn(stream) that many times (StreamFields.iter).
func (b *Binder) Iter(field string, length *int, fn func(*bytestream.Stream) (any, error)) []any {
	if !b.ok() {
		return nil
	}
	n := 0
	if length != nil {
		n = *length
	} else {
		le := bytestream.LittleEndian
		v, err := b.S.Uint(4, &le)
		if err != nil {
			b.fail(field, err)
			return nil
		}
		n = int(v)
	}
	out := make([]any, 0, n)
	for i := 0; i < n && b.ok(); i++ {
		v, err := fn(b.S)
		if err != nil {
			b.fail(fmt.Sprintf("%s[%d]", field, i), err)
			return out
		}
		out = append(out, v)
	}
	return out
}

// Subitem instantiates a nested decoder over the same stream
// (StreamFields.subitem).
func (b *Binder) Subitem(field string, fn func(*bytestream.Stream) (any, error)) any {
	if !b.ok() {
		return nil
	}
	v, err := fn(b.S)
	b.fail(field, err)
	return v
}

// DSC reads one datastream container (StreamFields "dsc" binding, spec.md
// §4.7).
func (b *Binder) DSC(field string) Container {
	if !b.ok() {
		return Container{}
	}
	v, err := ReadContainer(b.S)
	b.fail(field, err)
	return v
}

// IterDSC reads a list of containers, length-prefixed unless length is
// given (StreamFields "iter_dsc").
func (b *Binder) IterDSC(field string, length *int) []Container {
	if !b.ok() {
		return nil
	}
	n := 0
	if length != nil {
		n = *length
	} else {
		le := bytestream.LittleEndian
		v, err := b.S.Uint(4, &le)
		if err != nil {
			b.fail(field, err)
			return nil
		}
		n = int(v)
	}
	out := make([]Container, 0, n)
	for i := 0; i < n && b.ok(); i++ {
		c, err := ReadContainer(b.S)
		if err != nil {
			b.fail(fmt.Sprintf("%s[%d]", field, i), err)
			return out
		}
		out = append(out, c)
	}
	return out
}
