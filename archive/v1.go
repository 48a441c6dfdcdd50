// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package archive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/northlight-forge/nlarc/instance"
	"github.com/northlight-forge/nlarc/internal/bytestream"
	"github.com/northlight-forge/nlarc/log"
)

// ReaderV1 decodes a v1.x archive: a data-only .rmdp file plus a sibling
// .bin sidecar carrying the header and folder/file tables. Grounded on
// torchbearer/northlight_engine/readers.py's ReaderNLEv10.
type ReaderV1 struct {
	Instance instance.Config
	Path     string // .rmdp path
	PathBin  string
	PathMeta string // .packmeta sibling, may not exist

	VersionMajor int
	VersionMinor int

	CountDirMain, CountFileMain int
	CountDirRoot, CountFileRoot int

	NameArraySize int
	EndOfHeader   int64
	EndOfArray    int64
	Prefix        string
	HeaderUnknown []byte // 120 bytes of unidentified sidecar header data

	MainDirs, RootDirs   []FolderRecordV1
	MainFiles, RootFiles []FileRecordV1

	// HasPackMeta reports whether a .packmeta sibling was found next to
	// the .rmdp archive (spec.md §5 supplemented feature: auto-detected,
	// not required by the archive format itself).
	HasPackMeta bool

	Anomalies []string

	log *log.Helper

	binData []byte
}

// OpenV1 opens rmdpPath (expected extension .rmdp), locates and validates
// its .bin sidecar, and decodes the header and folder/file record tables.
func OpenV1(inst instance.Config, rmdpPath string, logger log.Logger) (*ReaderV1, error) {
	if err := checkNonEmptyFile(rmdpPath); err != nil {
		return nil, err
	}
	binPath := replaceExt(rmdpPath, ".bin")
	if err := checkNonEmptyFile(binPath); err != nil {
		return nil, err
	}

	r := &ReaderV1{
		Instance: inst,
		Path:     rmdpPath,
		PathBin:  binPath,
		PathMeta: replaceExt(rmdpPath, ".packmeta"),
		log:      log.NewHelper(logger),
	}
	if _, err := os.Stat(r.PathMeta); err == nil {
		r.HasPackMeta = true
	}

	data, err := os.ReadFile(binPath)
	if err != nil {
		return nil, err
	}
	r.binData = data

	if err := r.parseHeader(); err != nil {
		return nil, err
	}
	if err := r.parseTables(); err != nil {
		return nil, err
	}
	return r, nil
}

func checkNonEmptyFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrMissingSidecar
		}
		return err
	}
	if fi.Size() == 0 {
		return ErrEmptySidecar
	}
	return nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func (r *ReaderV1) parseHeader() error {
	s := bytestream.New(r.binData)

	// The sidecar's own leading byte is a boolean endian selector: true
	// selects big-endian for every subsequent header scalar. This is
	// independent of the fixed per-minor-version endianness used later
	// for the folder/file record arrays (see vfsLayout).
	selector, err := s.Bool()
	if err != nil {
		return err
	}
	if selector {
		s.Endian = bytestream.BigEndian
	} else {
		s.Endian = bytestream.LittleEndian
	}

	minor, err := s.AmbientInt()
	if err != nil {
		return err
	}
	r.VersionMajor = 1
	r.VersionMinor = int(minor)

	cd, err := s.AmbientInt()
	if err != nil {
		return err
	}
	cf, err := s.AmbientInt()
	if err != nil {
		return err
	}
	r.CountDirMain, r.CountFileMain = int(cd), int(cf)

	switch r.VersionMinor {
	case 2, 3:
		r.CountDirRoot, r.CountFileRoot = 0, 0
	case 7, 8, 9:
		rd, err := s.AmbientInt()
		if err != nil {
			return err
		}
		rf, err := s.AmbientInt()
		if err != nil {
			return err
		}
		r.CountDirRoot, r.CountFileRoot = int(rd), int(rf)
	default:
		return ErrUnknownMinorVersion
	}

	nsz, err := s.AmbientInt()
	if err != nil {
		return err
	}
	r.NameArraySize = int(nsz)
	r.EndOfArray = s.Len() - int64(r.NameArraySize)

	pfx, err := s.FixedString(8)
	if err != nil {
		return err
	}
	r.Prefix = pfx

	uhd, err := s.Read(120)
	if err != nil {
		return err
	}
	r.HeaderUnknown = uhd
	r.EndOfHeader = s.Tell()

	if r.VersionMinor == 2 {
		l, _ := layoutForMinor(2)
		if int64(fileRecordSize(l)*r.CountFileMain+folderRecordSize(l)*r.CountDirMain) == r.EndOfArray-r.EndOfHeader {
			r.VersionMinor = 2
		} else {
			r.VersionMinor = 3
		}
		r.Anomalies = append(r.Anomalies, AnoV1Disambiguation)
		r.log.Debugf("v1 minor-2 disambiguation resolved to %d (dc=%d fc=%d eoh=%d eoa=%d)",
			r.VersionMinor, r.CountDirMain, r.CountFileMain, r.EndOfHeader, r.EndOfArray)
	}
	return nil
}

func (r *ReaderV1) parseTables() error {
	layout, err := layoutForMinor(r.VersionMinor)
	if err != nil {
		return err
	}
	s := bytestream.New(r.binData)
	if _, err := s.Seek(r.EndOfHeader, bytestream.SeekStart); err != nil {
		return err
	}

	readDirs := func(n int) ([]FolderRecordV1, error) {
		out := make([]FolderRecordV1, 0, n)
		for i := 0; i < n; i++ {
			rec, err := readFolderRecordV1(s, layout, i)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	}
	readFiles := func(n int) ([]FileRecordV1, error) {
		out := make([]FileRecordV1, 0, n)
		for i := 0; i < n; i++ {
			rec, err := readFileRecordV1(s, layout, i)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	}

	if r.MainDirs, err = readDirs(r.CountDirMain); err != nil {
		return err
	}
	if r.MainFiles, err = readFiles(r.CountFileMain); err != nil {
		return err
	}
	if r.RootDirs, err = readDirs(r.CountDirRoot); err != nil {
		return err
	}
	if r.RootFiles, err = readFiles(r.CountFileRoot); err != nil {
		return err
	}
	return nil
}

// NameAt resolves a name_offset (relative to EndOfArray) to a
// NUL-terminated string from the sidecar's trailing name blob. A
// name_offset of -1 denotes "no name" and resolves to "".
func (r *ReaderV1) NameAt(nameOffset int64) (string, error) {
	if nameOffset == -1 {
		return "", nil
	}
	s := bytestream.New(r.binData)
	return s.NullTerminatedStringAt(r.EndOfArray+nameOffset, 0)
}

// BuildNameDict resolves every main_d/main_f record's name in one pass,
// mirroring build_strdict_option('fldr'|'file') from readers.py. Names
// are read from the .bin on every call; no on-disk string cache file is
// read or written.
func (r *ReaderV1) BuildNameDict(mode string) (map[int]string, error) {
	s := bytestream.New(r.binData)
	out := map[int]string{}
	switch mode {
	case "fldr":
		for _, d := range r.MainDirs {
			name, err := s.NullTerminatedStringAt(r.EndOfArray+d.NameOffset, 0)
			if d.NameOffset == -1 {
				name, err = "", nil
			}
			if err != nil {
				return nil, err
			}
			out[d.Index] = name
		}
	case "file":
		for _, f := range r.MainFiles {
			name, err := s.NullTerminatedStringAt(r.EndOfArray+f.NameOffset, 0)
			if f.NameOffset == -1 {
				name, err = "", nil
			}
			if err != nil {
				return nil, err
			}
			out[f.Index] = name
		}
	}
	return out, nil
}

// RelmapDirs groups MainDirs by parent_idx, mirroring readers.py's
// relmap_d property. Entries with parent_idx == -1 (the root) are
// excluded, matching the original's check.
func (r *ReaderV1) RelmapDirs() map[int64][]int {
	out := map[int64][]int{}
	for i, d := range r.MainDirs {
		if d.ParentIdx != -1 {
			out[d.ParentIdx] = append(out[d.ParentIdx], i)
		}
	}
	return out
}

// RelmapFiles groups MainFiles by parent_idx, mirroring relmap_f.
func (r *ReaderV1) RelmapFiles() map[int64][]int {
	out := map[int64][]int{}
	for i, f := range r.MainFiles {
		out[f.ParentIdx] = append(out[f.ParentIdx], i)
	}
	return out
}
