// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bundle

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func put32(buf *[]byte, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	*buf = append(*buf, b...)
}

func putLPString(buf *[]byte, s string) {
	put32(buf, uint32(len(s)))
	*buf = append(*buf, []byte(s)...)
}

func TestOpenArchiveBinRoundTrip(t *testing.T) {
	var payload []byte
	payload = append(payload, []byte("hello")...)
	payload = append(payload, []byte("world!")...)

	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	if _, err := zw.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	var data []byte
	put32(&data, 2)
	putLPString(&data, "a.txt")
	put32(&data, 5)
	putLPString(&data, "b.txt")
	put32(&data, 6)
	data = append(data, zbuf.Bytes()...)

	a, err := OpenArchiveBin("archive.bin", data)
	if err != nil {
		t.Fatalf("OpenArchiveBin: %v", err)
	}
	if len(a.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(a.Entries))
	}
	if string(a.Entries[0].Data) != "hello" || string(a.Entries[1].Data) != "world!" {
		t.Fatalf("got entries %+v", a.Entries)
	}
	files := a.Files()
	if string(files["a.txt"]) != "hello" {
		t.Fatalf("Files()[a.txt] = %q", files["a.txt"])
	}
}

func TestOpenStreamedResourceBinKnownPair(t *testing.T) {
	var data []byte
	put32(&data, streamedResourceMagic)
	put32(&data, 1) // version
	put32(&data, 4) // v1
	put32(&data, 32) // v2 -> fixed pair, metadata size 0
	put32(&data, 1) // numResources

	// one resource: RID(4) + offset(4) + FileInfoMetadata(12), metadata size 0
	data = append(data, 0xAA, 0xBB, 0xCC, 0xDD) // RID
	put32(&data, 0)                              // offset -> points at start of name blob
	put32(&data, 123)                            // fileSize
	put32(&data, 456)                             // fileDataCRC
	put32(&data, 0)                               // flags

	nameBlob := "resource_one\x00"
	put32(&data, uint32(len(nameBlob))) // nameBlobSize
	data = append(data, []byte(nameBlob)...)

	bin, err := OpenStreamedResourceBin("cid_streamedfacefxactor.bin", data)
	if err != nil {
		t.Fatalf("OpenStreamedResourceBin: %v", err)
	}
	if len(bin.Resources) != 1 {
		t.Fatalf("len(Resources) = %d, want 1", len(bin.Resources))
	}
	r := bin.Resources[0]
	if r.Name != "resource_one" {
		t.Fatalf("Name = %q, want %q", r.Name, "resource_one")
	}
	if r.FileInfo.FileSize != 123 || r.FileInfo.FileDataCRC != 456 {
		t.Fatalf("got FileInfo %+v", r.FileInfo)
	}
}

func TestOpenStringTableBinRoundTrip(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	valueUTF16, err := enc.Bytes([]byte("héllo"))
	if err != nil {
		t.Fatal(err)
	}

	var data []byte
	put32(&data, 1) // entry count
	key := "greeting"
	put32(&data, uint32(len(key)))
	data = append(data, []byte(key)...)
	put32(&data, uint32(len([]rune("héllo"))))
	data = append(data, valueUTF16...)

	tbl, err := OpenStringTableBin("string_table.bin", data)
	if err != nil {
		t.Fatalf("OpenStringTableBin: %v", err)
	}
	if len(tbl.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(tbl.Entries))
	}
	if tbl.Entries[0].Key != "greeting" || tbl.Entries[0].Value != "héllo" {
		t.Fatalf("got %+v", tbl.Entries[0])
	}
}
