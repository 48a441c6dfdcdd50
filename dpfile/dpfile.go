// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dpfile

import (
	"sort"

	"github.com/northlight-forge/nlarc/internal/bytestream"
	"github.com/northlight-forge/nlarc/log"
	"github.com/northlight-forge/nlarc/types"
)

// Variant is one of the three dp_ header layouts. The variant is
// discovered by probing which size formula reconciles with the file's
// total length, never declared in the file itself.
type Variant int

const (
	V1 Variant = iota
	V2
	V3
)

func (v Variant) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	case V3:
		return "v3"
	default:
		return "unknown"
	}
}

// overlapFlag marks an offset whose effective byte position is shifted
// by 4, one of the 8 flag bits packed into a raw offset word.
const overlapFlag = 0x80

// Offset decodes one packed offset word: the low byte is a flag set
// (bit 7 is "overlap"), the remaining bits, left-shifted by 3, are a
// byte offset (DP_Offset in dpfile.py).
type Offset struct {
	Raw   int64
	Flags uint8
	Size  int64 // filled in once every offset in the file is known
}

// NewOffset decodes a raw packed offset word.
func NewOffset(raw int64) *Offset {
	return &Offset{Raw: raw, Flags: uint8(raw & 0xFF)}
}

// BitOffset is the raw word's upper bits before the ×8 scale-up.
func (o *Offset) BitOffset() int64 { return o.Raw >> 8 }

// Offset is the effective byte offset from the start of the data
// region: bit_offset*8, plus 4 if the overlap flag is set.
func (o *Offset) Offset() int64 {
	off := o.BitOffset() * 8
	if o.Flags&overlapFlag != 0 {
		off += 4
	}
	return off
}

type offsetGroup struct {
	name    string
	offsets []*Offset
}

// File is a parsed dp_ file: a header declaring one or more offset-array
// groups, the arrays themselves, and a trailing data region the offsets
// point into.
type File struct {
	Name      string
	Variant   Variant
	DataSize  int64
	DataStart int64
	Unknown   []byte

	groups []offsetGroup
	data   []byte
	log    *log.Helper
}

// Parse decodes a dp_ file's header and offset-array tables.
func Parse(name string, data []byte, logger log.Logger) (*File, error) {
	if len(data) < 16 {
		return nil, ErrTooSmall
	}
	peek := make([]int64, 4)
	for i := 0; i < 4; i++ {
		peek[i] = int64(leU32(data[i*4 : i*4+4]))
	}
	total := int64(len(data))

	var variant Variant
	switch {
	case 20+peek[0]*4+peek[1]*4+peek[2] == total:
		variant = V1
	case 28+peek[0]*4+peek[1]*4+peek[2]*4+peek[3] == total:
		variant = V2
	case 40+peek[0]*8+peek[1]*8+peek[2]*8+peek[3]*8 == total:
		variant = V3
	default:
		return nil, ErrUnknownHeader
	}

	s := bytestream.New(data)
	le := bytestream.LittleEndian

	readU32 := func() (int64, error) {
		v, err := s.Uint(4, &le)
		return int64(v), err
	}

	var groupCounts []struct {
		name  string
		count int
	}
	var dataSize int64
	var unknown []byte
	var offsetWidth int

	switch variant {
	case V1:
		values, err := readU32()
		if err != nil {
			return nil, err
		}
		str, err := readU32()
		if err != nil {
			return nil, err
		}
		dataSize, err = readU32()
		if err != nil {
			return nil, err
		}
		unknown, err = s.Read(8)
		if err != nil {
			return nil, err
		}
		offsetWidth = 4
		groupCounts = []struct {
			name  string
			count int
		}{{"values", int(values)}, {"string", int(str)}}
	case V2:
		v1, err := readU32()
		if err != nil {
			return nil, err
		}
		v2, err := readU32()
		if err != nil {
			return nil, err
		}
		str, err := readU32()
		if err != nil {
			return nil, err
		}
		dataSize, err = readU32()
		if err != nil {
			return nil, err
		}
		unknown, err = s.Read(12)
		if err != nil {
			return nil, err
		}
		offsetWidth = 4
		groupCounts = []struct {
			name  string
			count int
		}{{"values1", int(v1)}, {"values2", int(v2)}, {"string", int(str)}}
	case V3:
		v1, err := readU32()
		if err != nil {
			return nil, err
		}
		v2, err := readU32()
		if err != nil {
			return nil, err
		}
		str, err := readU32()
		if err != nil {
			return nil, err
		}
		dataSize, err = readU32()
		if err != nil {
			return nil, err
		}
		unknown, err = s.Read(24)
		if err != nil {
			return nil, err
		}
		offsetWidth = 8
		groupCounts = []struct {
			name  string
			count int
		}{{"values1", int(v1)}, {"values2", int(v2)}, {"string", int(str)}}
	}

	helper := log.NewHelper(logger)
	if !allZero(unknown) {
		helper.Infof("dp file %s: nonzero unknown bytes after %s header: % X", name, variant, unknown)
	}

	groups := make([]offsetGroup, len(groupCounts))
	var all []*Offset
	for gi, gc := range groupCounts {
		groups[gi].name = gc.name
		for j := 0; j < gc.count; j++ {
			var raw int64
			var err error
			if offsetWidth == 4 {
				raw, err = s.Int(4, &le)
			} else {
				raw, err = s.Int(8, &le)
			}
			if err != nil {
				return nil, err
			}
			o := NewOffset(raw)
			groups[gi].offsets = append(groups[gi].offsets, o)
			all = append(all, o)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Offset() < all[j].Offset() })
	for i, o := range all {
		if i == len(all)-1 {
			o.Size = abs64(dataSize - o.Offset())
			continue
		}
		o.Size = all[i+1].Offset() - o.Offset()
	}

	return &File{
		Name:      name,
		Variant:   variant,
		DataSize:  dataSize,
		DataStart: total - dataSize,
		Unknown:   unknown,
		groups:    groups,
		data:      data,
		log:       helper,
	}, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// isOffsetValid reports whether off's effective byte offset matches one
// of the offsets declared in the file's own offset-array tables.
func (f *File) isOffsetValid(off *Offset) bool {
	for _, g := range f.groups {
		for _, x := range g.offsets {
			if off.Offset() == x.Offset() {
				return true
			}
		}
	}
	return false
}

func (f *File) stream() *bytestream.Stream { return bytestream.New(f.data) }

// seekToOffset positions s at off's effective offset relative to the
// start of the trailing data region (go_to_offset in dpfile.py).
func (f *File) seekToOffset(s *bytestream.Stream, off *Offset) error {
	_, err := s.Seek(-f.DataSize+off.Offset(), bytestream.SeekEnd)
	return err
}

// Get reads one value at rawOffset by decoding it with read. isStr
// skips the known-offset validity check, mirroring getValue's
// special-case for string fields, which may legitimately point anywhere
// in the data region rather than only at a declared offset-table entry.
// A raw offset with no flags set at all is a "not present" sentinel and
// yields an empty string regardless of read, matching the original's
// quirk of using '' as its universal absent-value marker.
func (f *File) Get(rawOffset int64, isStr bool, read func(*bytestream.Stream) (any, error)) any {
	off := NewOffset(rawOffset)
	if off.Offset() > f.DataSize {
		f.log.Errorf("dpfile %s: Get offset %d exceeds data size %d", f.Name, off.Offset(), f.DataSize)
		return nil
	}
	if off.Flags == 0 {
		return ""
	}
	if !isStr && !f.isOffsetValid(off) {
		f.log.Errorf("dpfile %s: Get at invalid offset %d", f.Name, off.Offset())
		return nil
	}
	s := f.stream()
	if err := f.seekToOffset(s, off); err != nil {
		f.log.Errorf("dpfile %s: seek failed: %v", f.Name, err)
		return nil
	}
	v, err := read(s)
	if err != nil {
		f.log.Errorf("dpfile %s: Get read failed: %v", f.Name, err)
		return nil
	}
	return v
}

// GetList reads count values starting at rawOffset, failing closed
// (empty slice) when rawOffset does not match a declared offset-table
// entry.
func (f *File) GetList(rawOffset int64, count int, read func(*bytestream.Stream) (any, error)) []any {
	off := NewOffset(rawOffset)
	if !f.isOffsetValid(off) {
		f.log.Errorf("dpfile %s: GetList at invalid offset %d", f.Name, off.Offset())
		return []any{}
	}
	s := f.stream()
	if _, err := s.Seek(-f.DataSize+off.Offset(), bytestream.SeekEnd); err != nil {
		f.log.Errorf("dpfile %s: seek failed: %v", f.Name, err)
		return []any{}
	}
	out := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := read(s)
		if err != nil {
			f.log.Errorf("dpfile %s: GetList read %d failed: %v", f.Name, i, err)
			break
		}
		out = append(out, v)
	}
	return out
}

// GetGIDs reads count GIDs starting at rawOffset, each followed by 8
// bytes of padding (the 16-byte stride of a GID table entry).
func (f *File) GetGIDs(rawOffset int64, count int) []types.GID {
	off := NewOffset(rawOffset)
	if !f.isOffsetValid(off) {
		f.log.Errorf("dpfile %s: GetGIDs at invalid offset %d", f.Name, off.Offset())
		return nil
	}
	s := f.stream()
	if _, err := s.Seek(-f.DataSize+off.Offset(), bytestream.SeekEnd); err != nil {
		f.log.Errorf("dpfile %s: seek failed: %v", f.Name, err)
		return nil
	}
	out := make([]types.GID, 0, count)
	for i := 0; i < count; i++ {
		gid, err := types.ReadGID(s)
		if err != nil {
			f.log.Errorf("dpfile %s: GetGIDs read %d failed: %v", f.Name, i, err)
			break
		}
		if _, err := s.Seek(8, bytestream.SeekCurrent); err != nil {
			break
		}
		out = append(out, gid)
	}
	return out
}
