// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package strcache implements the on-disk StringCacheFile format used to
// memoize expensive name-table reconstructions, grounded on
// mulch/bytetools.py's CloseStrCache: `[count:u32le][len_0:u32le ...
// len_n-1:u32le][utf8_bytes_0 ... utf8_bytes_n-1]`, a mapping int -> string
// over keys 0..count-1.
package strcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Write persists m (keyed 0..len(m)-1, every key must be present) to path
// as a whole-file atomic overwrite: the contents are staged to a sibling
// temp file and renamed into place, so a concurrent reader never observes
// a torn file.
func Write(path string, m map[int]string) error {
	count := len(m)
	ordered := make([]string, count)
	for i := 0; i < count; i++ {
		v, ok := m[i]
		if !ok {
			return fmt.Errorf("strcache: map missing contiguous key %d (count %d)", i, count)
		}
		ordered[i] = v
	}

	var buf bytes.Buffer
	var lenHdr bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(count)); err != nil {
		return err
	}
	for _, s := range ordered {
		if err := binary.Write(&lenHdr, binary.LittleEndian, uint32(len(s))); err != nil {
			return err
		}
	}
	buf.Write(lenHdr.Bytes())
	for _, s := range ordered {
		buf.WriteString(s)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".strcache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Read loads a StringCacheFile produced by Write.
func Read(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses the StringCacheFile wire format from an in-memory buffer.
func Decode(data []byte) (map[int]string, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("strcache: truncated header")
	}
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	lensStart := 4
	lensEnd := lensStart + 4*count
	if lensEnd > len(data) {
		return nil, fmt.Errorf("strcache: truncated length table (count %d)", count)
	}
	lens := make([]int, count)
	for i := 0; i < count; i++ {
		lens[i] = int(binary.LittleEndian.Uint32(data[lensStart+4*i : lensStart+4*i+4]))
	}
	out := make(map[int]string, count)
	pos := lensEnd
	for i := 0; i < count; i++ {
		end := pos + lens[i]
		if end > len(data) {
			return nil, fmt.Errorf("strcache: truncated string payload at index %d", i)
		}
		out[i] = string(data[pos:end])
		pos = end
	}
	return out, nil
}
