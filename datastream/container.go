// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package datastream implements the self-describing framed object
// envelope shared by CID bins, RMDL batches and packmeta trees, plus the
// (type_hash, version)-keyed decoder registry and the declarative
// FieldBindings struct-population DSL that concrete decoders are built
// from. Grounded on torchbearer/northlight_internal/cid_base.py's
// container/registry machinery, written in the idiom of saferwall-pe's
// dispatch-by-map-of-functions in pe.go.
package datastream

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/northlight-forge/nlarc/internal/bytestream"
)

// Container magic tags (spec.md §4.6). Envelope v1 opens and closes with
// the same 4-byte big-endian tag; v2 likewise.
const (
	magicV1 uint32 = 0xDEADBEEF
	magicV2 uint32 = 0xD34DB33F
)

var (
	// ErrBadContainerMagic is returned when neither known magic is found
	// at the current stream position.
	ErrBadContainerMagic = errors.New("datastream: unrecognized container magic")

	// ErrContainerMagicMismatch is returned when a container's closing
	// magic does not match its opening magic.
	ErrContainerMagicMismatch = errors.New("datastream: container closing magic mismatch")

	// ErrDuplicateDecoder is returned by Register when (typeHash,
	// version) is already bound to a decoder.
	ErrDuplicateDecoder = errors.New("datastream: decoder already registered for this (type, version)")
)

// Container is one decoded envelope: its type identity and its payload,
// ready for a registered decoder (or FieldBindings-driven Bind) to
// consume.
type Container struct {
	Version  int // envelope variant: 1 or 2
	TypeHash uint32
	Ver      uint32
	Extra    uint32 // v2 only, present when unk == 1
	Payload  []byte
}

// TypeHashHex renders TypeHash the way the source displays it: uppercase
// hex, no leading "0x".
func (c Container) TypeHashHex() string { return fmt.Sprintf("%08X", c.TypeHash) }

// ReadContainer decodes one container at the stream's current position,
// advancing past its closing magic.
func ReadContainer(s *bytestream.Stream) (Container, error) {
	peeked, err := s.Peek(4)
	if err != nil {
		return Container{}, err
	}
	tag := binary.BigEndian.Uint32(peeked)
	switch tag {
	case magicV1:
		return readContainerV1(s)
	case magicV2:
		return readContainerV2(s)
	default:
		return Container{}, ErrBadContainerMagic
	}
}

func readContainerV1(s *bytestream.Stream) (Container, error) {
	be := bytestream.BigEndian
	if _, err := s.Uint(4, &be); err != nil { // opening magic
		return Container{}, err
	}
	le := bytestream.LittleEndian
	size, err := s.Uint(4, &le)
	if err != nil {
		return Container{}, err
	}
	typeHash, err := s.Uint(4, &be)
	if err != nil {
		return Container{}, err
	}
	version, err := s.Uint(4, &le)
	if err != nil {
		return Container{}, err
	}
	payloadLen := int64(size) - 20
	if payloadLen < 0 {
		return Container{}, fmt.Errorf("datastream: v1 container size %d too small for header", size)
	}
	payload, err := s.Read(int(payloadLen))
	if err != nil {
		return Container{}, err
	}
	closing, err := s.Uint(4, &be)
	if err != nil {
		return Container{}, err
	}
	if uint32(closing) != magicV1 {
		return Container{}, ErrContainerMagicMismatch
	}
	return Container{Version: 1, TypeHash: uint32(typeHash), Ver: uint32(version), Payload: payload}, nil
}

func readContainerV2(s *bytestream.Stream) (Container, error) {
	be := bytestream.BigEndian
	le := bytestream.LittleEndian
	if _, err := s.Uint(4, &be); err != nil { // opening magic
		return Container{}, err
	}
	unk, err := s.Uint(4, &le)
	if err != nil {
		return Container{}, err
	}
	size, err := s.Uint(4, &le)
	if err != nil {
		return Container{}, err
	}
	typeHash, err := s.Uint(4, &be)
	if err != nil {
		return Container{}, err
	}
	version, err := s.Uint(4, &le)
	if err != nil {
		return Container{}, err
	}
	headerLen := 24
	var extra uint32
	if unk == 1 {
		e, err := s.Uint(4, &le)
		if err != nil {
			return Container{}, err
		}
		extra = uint32(e)
		headerLen = 28
	}
	payloadLen := int64(size) - int64(headerLen)
	if payloadLen < 0 {
		return Container{}, fmt.Errorf("datastream: v2 container size %d too small for header", size)
	}
	payload, err := s.Read(int(payloadLen))
	if err != nil {
		return Container{}, err
	}
	closing, err := s.Uint(4, &be)
	if err != nil {
		return Container{}, err
	}
	if uint32(closing) != magicV2 {
		return Container{}, ErrContainerMagicMismatch
	}
	return Container{Version: 2, TypeHash: uint32(typeHash), Ver: uint32(version), Extra: extra, Payload: payload}, nil
}
