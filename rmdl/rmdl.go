// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rmdl

import (
	"strings"

	"github.com/northlight-forge/nlarc/datastream"
	"github.com/northlight-forge/nlarc/internal/bytestream"
	"github.com/northlight-forge/nlarc/log"
)

// Entry is one directory record from the file's tail: a name, its byte
// size in the body, and the cumulative offset that size implies
// (offset bookkeeping only — the body is always read sequentially, never
// seeked to by this offset; see DESIGN.md for why RMDL_DSC's own offset
// formula is not reproduced literally).
type Entry struct {
	Name   string
	Size   int
	Offset int
}

// Section is one hashed datastream container inside a Batch: its 8-byte
// LUT identifier and the decoded container (HashedDSC).
type Section struct {
	LUT       [8]byte
	Container datastream.Container
}

// Batch is one named, non-`dp_` entry's body, decoded as a BatchDSC: a
// content version/type pair, and the datastream containers its LUT
// names.
type Batch struct {
	Name        string
	Version     uint32
	ContentType uint32
	Unknown     uint32
	Sections    []Section
}

// File is a fully parsed `.rmdl` bundle.
type File struct {
	Name     string
	TailSize int64
	Entries  []Entry
	Batches  map[string]*Batch

	log *log.Helper
}

// Open parses an rmdl bundle.
func Open(name string, data []byte, logger log.Logger) (*File, error) {
	helper := log.NewHelper(logger)
	s := bytestream.New(data)

	magic, err := s.Read(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != "RMDL" {
		return nil, ErrBadMagic
	}
	tailSize, err := s.U32()
	if err != nil {
		return nil, err
	}
	total := int64(len(data))
	tailStart := total - int64(tailSize)
	if tailStart < 8 {
		return nil, ErrTailTooLarge
	}

	if _, err := s.Seek(tailStart, bytestream.SeekStart); err != nil {
		return nil, err
	}
	entryCount, err := s.U32()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, entryCount)
	offset := int64(8)
	for i := range entries {
		size, err := s.U32()
		if err != nil {
			return nil, err
		}
		entryName, err := s.LengthPrefixedString()
		if err != nil {
			return nil, err
		}
		entries[i] = Entry{Name: entryName, Size: int(size), Offset: int(offset)}
		offset += int64(size)
	}

	if _, err := s.Seek(8, bytestream.SeekStart); err != nil {
		return nil, err
	}
	batches := make(map[string]*Batch, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name, "dp_") {
			if _, err := s.Seek(int64(e.Size), bytestream.SeekCurrent); err != nil {
				return nil, err
			}
			continue
		}
		b, err := decodeBatch(s, e.Name)
		if err != nil {
			return nil, err
		}
		batches[e.Name] = b
	}

	helper.Infof("rmdl: parsed %q: %d entries, %d batches", name, len(entries), len(batches))
	return &File{Name: name, TailSize: tailSize, Entries: entries, Batches: batches, log: helper}, nil
}

// decodeBatch reads one BatchDSC at the stream's current position: a
// version/content-type/section-count/unknown header, then an 8-byte LUT
// identifier per section, then one datastream container per section in
// LUT order (HashedDSC).
func decodeBatch(s *bytestream.Stream, name string) (*Batch, error) {
	version, err := s.U32()
	if err != nil {
		return nil, err
	}
	contentType, err := s.U32()
	if err != nil {
		return nil, err
	}
	sectionCount, err := s.U32()
	if err != nil {
		return nil, err
	}
	unknown, err := s.U32()
	if err != nil {
		return nil, err
	}

	lut := make([][8]byte, sectionCount)
	for i := range lut {
		raw, err := s.Read(8)
		if err != nil {
			return nil, err
		}
		copy(lut[i][:], raw)
	}

	sections := make([]Section, sectionCount)
	for i, l := range lut {
		c, err := datastream.ReadContainer(s)
		if err != nil {
			return nil, err
		}
		sections[i] = Section{LUT: l, Container: c}
	}

	return &Batch{Name: name, Version: version, ContentType: contentType, Unknown: unknown, Sections: sections}, nil
}
