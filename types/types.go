// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package types holds the small value types shared across the archive,
// vfs, datastream, dpfile and packmeta packages: OfSz offset/size pairs,
// resource identifiers, and GID/ObjectID entity handles (spec.md §3,
// grounded on torchbearer/northlight_internal/types_general.py).
package types

import (
	"encoding/binary"
	"fmt"

	"github.com/northlight-forge/nlarc/internal/bytestream"
)

// OfSz is an (offset, size) pair used pervasively by the v2 TOC.
type OfSz struct {
	Offset uint32
	Size   uint32
}

// ReadOfSz reads one OfSz: offset:u32, size:u32.
func ReadOfSz(s *bytestream.Stream) (OfSz, error) {
	off, err := s.U32()
	if err != nil {
		return OfSz{}, err
	}
	size, err := s.U32()
	if err != nil {
		return OfSz{}, err
	}
	return OfSz{Offset: off, Size: size}, nil
}

// RID is an opaque 4- or 8-byte resource identifier, displayed as
// reversed-hex (types_general.py's RID.__str__ reverses byte order before
// hex-encoding).
type RID struct {
	raw []byte
}

// NewRID wraps raw resource-identifier bytes (expected length 4 or 8).
func NewRID(raw []byte) RID {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return RID{raw: cp}
}

// ReadRID reads a length-byte resource identifier (4 for the short form,
// 8 for RID.long).
func ReadRID(s *bytestream.Stream, length int) (RID, error) {
	raw, err := s.Read(length)
	if err != nil {
		return RID{}, err
	}
	return NewRID(raw), nil
}

// Bytes returns the identifier's raw bytes, in on-disk order.
func (r RID) Bytes() []byte { return r.raw }

// IsZero reports whether every byte of the identifier is zero.
func (r RID) IsZero() bool {
	for _, b := range r.raw {
		if b != 0 {
			return false
		}
	}
	return true
}

// String renders the identifier as reversed-byte-order uppercase hex.
func (r RID) String() string {
	out := make([]byte, len(r.raw))
	for i, b := range r.raw {
		out[len(r.raw)-1-i] = b
	}
	return fmt.Sprintf("%X", out)
}

// GID is a globally unique entity identifier: (type, id), both stored
// big-endian on disk. The nil GID is (0, 0).
type GID struct {
	Type uint32
	ID   uint32
}

// ReadGID reads an 8-byte big-endian GID (type, id).
func ReadGID(s *bytestream.Stream) (GID, error) {
	e := bytestream.BigEndian
	typ, err := s.Uint(4, &e)
	if err != nil {
		return GID{}, err
	}
	id, err := s.Uint(4, &e)
	if err != nil {
		return GID{}, err
	}
	return GID{Type: uint32(typ), ID: uint32(id)}, nil
}

// IsNil reports whether the GID equals the zero value (0, 0).
func (g GID) IsNil() bool { return g.Type == 0 && g.ID == 0 }

func (g GID) String() string { return fmt.Sprintf("GID(%d,%d)", g.Type, g.ID) }

// ObjectID is a 32-bit packed identifier: the low 9 bits are a type tag,
// the upper 23 bits are the id.
type ObjectID uint32

// Type returns the low 9-bit type tag.
func (o ObjectID) Type() uint32 { return uint32(o) & 0x1FF }

// ID returns the upper 23-bit id.
func (o ObjectID) ID() uint32 { return uint32(o) >> 9 }

// NewObjectID packs a (type, id) pair; typ must fit in 9 bits and id in
// 23 bits.
func NewObjectID(typ, id uint32) ObjectID {
	return ObjectID((typ & 0x1FF) | (id << 9))
}

// PutUint32LE returns v encoded as 4 little-endian bytes.
func PutUint32LE(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
