// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bundle

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/northlight-forge/nlarc/internal/bytestream"
)

// ArchiveEntry is one named, sized item inside an ArchiveBin's ZLIB
// payload.
type ArchiveEntry struct {
	Name string
	Size int
	Data []byte
}

// ArchiveBin is a `.bin` file that is not a CID/DP/streamed-resource
// blob: a name/size table followed by one ZLIB-compressed payload
// holding every item's bytes concatenated in declared order
// (BinFileArchive in binfile.py).
type ArchiveBin struct {
	Name    string
	Entries []ArchiveEntry
}

// OpenArchiveBin parses an archive bin.
func OpenArchiveBin(name string, data []byte) (*ArchiveBin, error) {
	s := bytestream.New(data)
	le := bytestream.LittleEndian
	count, err := s.Uint(4, &le)
	if err != nil {
		return nil, err
	}
	type item struct {
		name string
		size int
	}
	items := make([]item, count)
	for i := range items {
		n, err := s.LengthPrefixedString()
		if err != nil {
			return nil, err
		}
		sz, err := s.Uint(4, &le)
		if err != nil {
			return nil, err
		}
		items[i] = item{name: n, size: int(sz)}
	}

	rest, err := s.Read(int(s.Remaining()))
	if err != nil {
		return nil, err
	}
	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}

	entries := make([]ArchiveEntry, len(items))
	pos := 0
	for i, it := range items {
		if pos+it.size > len(payload) {
			return nil, bytestream.ErrOutOfBounds
		}
		entries[i] = ArchiveEntry{Name: it.name, Size: it.size, Data: payload[pos : pos+it.size]}
		pos += it.size
	}

	return &ArchiveBin{Name: name, Entries: entries}, nil
}

// Files returns the archive's entries as a name-to-bytes map
// (BinFileArchive.files).
func (a *ArchiveBin) Files() map[string][]byte {
	out := make(map[string][]byte, len(a.Entries))
	for _, e := range a.Entries {
		out[e.Name] = e.Data
	}
	return out
}
