// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bundle

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/northlight-forge/nlarc/internal/bytestream"
)

// StringTableEntry is one key/value pair of a StringTableBin.
type StringTableEntry struct {
	Key   string
	Value string
}

// StringTableBin is `string_table.bin`: a UTF-8 key, UTF-16LE value pair
// table used under `data/locale/{language}/` (BinFileStringTable in
// binfile.py, itself adapted from AWTools's stringtable2xml.py).
type StringTableBin struct {
	Name    string
	Entries []StringTableEntry
}

// OpenStringTableBin parses a string-table bin.
func OpenStringTableBin(name string, data []byte) (*StringTableBin, error) {
	s := bytestream.New(data)
	le := bytestream.LittleEndian
	count, err := s.Uint(4, &le)
	if err != nil {
		return nil, err
	}

	utf16le := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	entries := make([]StringTableEntry, count)
	for i := range entries {
		keyLen, err := s.Uint(4, &le)
		if err != nil {
			return nil, err
		}
		key, err := s.Read(int(keyLen))
		if err != nil {
			return nil, err
		}
		valLenChars, err := s.Uint(4, &le)
		if err != nil {
			return nil, err
		}
		valRaw, err := s.Read(int(valLenChars) * 2)
		if err != nil {
			return nil, err
		}
		val, err := utf16le.Bytes(valRaw)
		if err != nil {
			return nil, err
		}
		entries[i] = StringTableEntry{Key: string(key), Value: string(val)}
	}

	return &StringTableBin{Name: name, Entries: entries}, nil
}
