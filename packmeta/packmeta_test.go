// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package packmeta

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/northlight-forge/nlarc/log"
)

func put32(buf *[]byte, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	*buf = append(*buf, b...)
}

func putNTS(buf *[]byte, s string) {
	*buf = append(*buf, []byte(s)...)
	*buf = append(*buf, 0)
}

// fileMetadataEntryContainer builds one DEADBEEF-framed
// FileMetadataEntry container with a single sub-item selecting
// tree[metaIndex][fileIndex].
func fileMetadataEntryContainer(typeHash, version, offset, metaIndex, fileIndex uint32) []byte {
	var payload []byte
	put32(&payload, offset)
	put32(&payload, 1) // sub-item count
	var sub []byte
	put32(&sub, metaIndex)
	put32(&sub, fileIndex)
	payload = append(payload, container(0xADC4584F, 1, sub)...)
	return container(typeHash, version, payload)
}

func container(typeHash, version uint32, payload []byte) []byte {
	var buf []byte
	be := make([]byte, 4)
	binary.BigEndian.PutUint32(be, 0xDEADBEEF)
	buf = append(buf, be...)
	put32(&buf, uint32(20+len(payload)))
	th := make([]byte, 4)
	binary.BigEndian.PutUint32(th, typeHash)
	buf = append(buf, th...)
	put32(&buf, version)
	buf = append(buf, payload...)
	buf = append(buf, be...)
	return buf
}

// buildMinimal builds a one-file, one-type packmeta blob for minor
// version 7 (predefined type names), with a FileInfoMetadata tree entry
// selected for its single file.
func buildMinimal(t *testing.T) []byte {
	t.Helper()
	names := "file_one.tex\x00"
	var data []byte
	put32(&data, 1) // file_count
	put32(&data, 1) // tree_count
	put32(&data, 1) // element_count
	put32(&data, uint32(len(names)))
	putNTS(&data, "file_one.tex")
	put32(&data, 100) // offsets[0]

	put32(&data, 1) // rid_count
	data = append(data, 0xAA, 0xBB, 0xCC, 0xDD) // one RID (4 bytes, minor==7)
	put32(&data, 100)                           // rid_ofsts key for offset 100

	put32(&data, 1) // type def count (count_files worth isn't relevant here)
	put32(&data, 1) // predefined type 0 (content::FileInfoMetadata) has 1 tree element

	// tree[0][0]: a FileInfoMetadata-shaped container (opaque payload here).
	data = append(data, container(0x95E8C0EF, 0, []byte{1, 2, 3, 4})...)

	// one FileMetadataEntry selecting tree[0][0]
	data = append(data, fileMetadataEntryContainer(0x54034281, 1, 100, 0, 0)...)

	return data
}

func TestOpenAssemblesFileRecord(t *testing.T) {
	data := buildMinimal(t)
	f, err := Open("test.packmeta", data, 7, log.NewStdLogger(os.Stderr))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(f.Files) != 1 {
		t.Fatalf("len(Files) = %d, want 1", len(f.Files))
	}
	pf := f.Files[0]
	if pf.Name != "file_one.tex" || pf.Offset != 100 {
		t.Fatalf("got %+v", pf)
	}
	if pf.RID == nil || pf.RID.IsZero() {
		t.Fatalf("RID not resolved: %+v", pf.RID)
	}
	if len(pf.Meta) != 1 {
		t.Fatalf("len(Meta) = %d, want 1", len(pf.Meta))
	}
	if pf.Meta[0].TypeHash != 0x95E8C0EF {
		t.Fatalf("Meta[0].TypeHash = %08X", pf.Meta[0].TypeHash)
	}
	if len(f.TypeDefs) != 1 || f.TypeDefs[0].Name != "content::FileInfoMetadata" {
		t.Fatalf("got TypeDefs %+v", f.TypeDefs)
	}
}

func TestOpenRejectsOldMinorVersion(t *testing.T) {
	if _, err := Open("test.packmeta", []byte{}, 3, log.NewStdLogger(os.Stderr)); err != ErrUnknownMinorVersion {
		t.Fatalf("got %v, want ErrUnknownMinorVersion", err)
	}
}
