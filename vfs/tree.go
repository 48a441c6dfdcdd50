// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/northlight-forge/nlarc/archive"
	"github.com/northlight-forge/nlarc/types"
)

// noParent is the "no parent/no sibling" sentinel shared by every
// parent_idx/next_id field across both reader generations.
const noParent = -1

// rmdtocChunkStride is the wire size of one chunk record (marshall.py's
// NPD.DT_TOC_CHNK.itemsize), the stride a FileRecordV2.Chunks OfSz is
// measured in.
const rmdtocChunkStride = 16

// Entry is the navigation state shared by Folder and File: the fields
// GenericVFS carries in engine.py (admin/index/parent_idx/name/next_id).
type Entry struct {
	Admin     *Admin
	Index     int
	ParentIdx int64
	Name      string
	NextID    int64
}

// Folder is one directory node. Grounded on engine.py's Folder dataclass.
type Folder struct {
	Entry

	FileIndex      int
	FileCount      int
	NextCount      int
	FirstChildDir  int64
	FirstChildFile int64
	ChildDirIDs    []int
	ChildFileIDs   []int
}

// Size is the folder's direct child count (folders plus files).
func (f *Folder) Size() int { return len(f.ChildDirIDs) + len(f.ChildFileIDs) }

// Parent resolves the folder's parent, or nil at the root. v2 archives
// self-parent their root (parent_idx == the folder's own index) rather
// than carrying a true -1 sentinel, since the wire field is unsigned;
// this mirrors engine.py's extra elif clause that exists only on Folder.
func (f *Folder) Parent() *Folder {
	if f.ParentIdx == noParent || f.ParentIdx == int64(f.Index) {
		return nil
	}
	return f.Admin.tree.Folders[int(f.ParentIdx)]
}

// Parents walks up to the root, nearest ancestor first.
func (f *Folder) Parents() []*Folder { return ancestorsOf(f.Parent()) }

// Depth counts ancestor folders, the root included; a root folder has
// depth 0.
func (f *Folder) Depth() int { return depthOf(f.Parent()) }

// PathRaw joins ancestor names with '/', without the instance prefix.
func (f *Folder) PathRaw() string { return joinRawPath(f.Parent(), f.Name) }

// Path composes the slash-joined ancestor path; mode "raw" omits the
// archive's filesystem prefix, "std" (the default for any other value)
// prepends it at the root.
func (f *Folder) Path(mode string) string { return joinPath(f.Admin, f.Parent(), f.Name, mode) }

// ExportPath is the sanitized, directory-creating on-disk export target
// for this folder's subtree.
func (f *Folder) ExportPath() (string, error) { return exportPathFor(f.Admin, f.PathRaw()) }

// Next returns the next sibling folder in declaration order, or nil.
func (f *Folder) Next() *Folder {
	if f.NextID == noParent {
		return nil
	}
	return f.Admin.tree.Folders[int(f.NextID)]
}

// File is one file node. Grounded on engine.py's File dataclass.
type File struct {
	Entry

	ChunksIDs      []int
	OutSize        int64
	MetadataOffset int64
	MetadataSize   int64
	DataHash       []byte // nil for v2 (no per-file hash is carried there)
}

// Chunks resolves this file's chunk list against the archive's DataAdmin.
func (f *File) Chunks() ([]*Chunk, error) {
	data, err := f.Admin.Data()
	if err != nil {
		return nil, err
	}
	out := make([]*Chunk, len(f.ChunksIDs))
	for i, id := range f.ChunksIDs {
		out[i] = data.Chunks[id]
	}
	return out, nil
}

// Size is the sum of every chunk's on-disk (possibly compressed) size.
func (f *File) Size() (int64, error) {
	chunks, err := f.Chunks()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, c := range chunks {
		total += int64(c.Size())
	}
	return total, nil
}

// Extension is the file's name suffix after the final '.', matching
// name.split('.')[-1] (so an extensionless name yields the whole name).
func (f *File) Extension() string {
	if i := strings.LastIndexByte(f.Name, '.'); i >= 0 {
		return f.Name[i+1:]
	}
	return f.Name
}

// Parent resolves the containing folder, or nil if this is a root file.
func (f *File) Parent() *Folder {
	if f.ParentIdx == noParent {
		return nil
	}
	return f.Admin.tree.Folders[int(f.ParentIdx)]
}

func (f *File) Parents() []*Folder { return ancestorsOf(f.Parent()) }
func (f *File) Depth() int         { return depthOf(f.Parent()) }
func (f *File) PathRaw() string    { return joinRawPath(f.Parent(), f.Name) }
func (f *File) Path(mode string) string {
	return joinPath(f.Admin, f.Parent(), f.Name, mode)
}
func (f *File) ExportPath() (string, error) { return exportPathFor(f.Admin, f.PathRaw()) }

// IsExported reports whether the export path already holds this file's
// assembled bytes.
func (f *File) IsExported() (bool, error) {
	p, err := f.ExportPath()
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

// Export reads and concatenates every chunk and writes the result to
// the export path, creating parent directories as needed.
func (f *File) Export() error {
	p, err := f.ExportPath()
	if err != nil {
		return err
	}
	data, err := f.read()
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// Data exports the file on first call and rereads the on-disk export
// on every call after, mirroring File.data's cached-export semantics.
func (f *File) Data() ([]byte, error) {
	exported, err := f.IsExported()
	if err != nil {
		return nil, err
	}
	if !exported {
		if err := f.Export(); err != nil {
			return nil, err
		}
	}
	p, err := f.ExportPath()
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (f *File) read() ([]byte, error) {
	chunks, err := f.Chunks()
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, c := range chunks {
		b, err := c.Read()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// ReadFirstChunk reads only the file's first chunk, for callers that
// only need a header peek rather than the whole assembled file.
func (f *File) ReadFirstChunk() ([]byte, error) {
	if len(f.ChunksIDs) == 0 {
		return nil, ErrFileHasNoChunks
	}
	chunks, err := f.Chunks()
	if err != nil {
		return nil, err
	}
	return chunks[0].Read()
}

// Metadata slices this file's metadata range out of the v1 .packmeta
// sibling via MetaAdmin.Get. For v1 files (metadata_offset/size always
// zero) and for archives with no .packmeta sibling this returns nil.
func (f *File) Metadata() ([]byte, error) {
	if f.MetadataSize == 0 {
		return nil, nil
	}
	meta, err := f.Admin.Meta()
	if err != nil {
		return nil, err
	}
	return meta.Get(f.MetadataOffset, f.MetadataSize)
}

// Next returns the next file in declaration order, or nil at the end.
func (f *File) Next() *File {
	if f.NextID == noParent {
		return nil
	}
	return f.Admin.tree.Files[int(f.NextID)]
}

func ancestorsOf(p *Folder) []*Folder {
	var out []*Folder
	for p != nil {
		out = append(out, p)
		p = p.Parent()
	}
	return out
}

func depthOf(p *Folder) int {
	if p == nil {
		return 0
	}
	return 1 + depthOf(p.Parent())
}

func joinRawPath(parent *Folder, name string) string {
	if parent == nil {
		return name
	}
	return parent.PathRaw() + "/" + name
}

func joinPath(admin *Admin, parent *Folder, name, mode string) string {
	if parent == nil {
		if mode == "raw" {
			return name
		}
		return admin.prefix() + "/" + name
	}
	return parent.Path(mode) + "/" + name
}

// exportPathFor sanitizes rawPath (':' is not valid in Windows paths)
// and creates its parent directory eagerly, mirroring export_path's
// mkdir-on-first-query behavior.
func exportPathFor(admin *Admin, rawPath string) (string, error) {
	sanitized := strings.ReplaceAll(rawPath, ":", "_")
	p := filepath.Join(admin.ExportRoot(), filepath.FromSlash(sanitized))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	return p, nil
}

// TreeAdmin is the folder/file index over one archive, normalizing both
// reader generations' record shapes into Folder/File. Grounded on
// engine.py's TreeAdmin.__init__.
type TreeAdmin struct {
	Admin   *Admin
	Folders map[int]*Folder
	Files   map[int]*File
}

// TotalFileSize sums every file's on-disk chunk size.
func (t *TreeAdmin) TotalFileSize() (int64, error) {
	var total int64
	for _, f := range t.Files {
		sz, err := f.Size()
		if err != nil {
			return 0, err
		}
		total += sz
	}
	return total, nil
}

func newTreeAdmin(a *Admin) (*TreeAdmin, error) {
	switch {
	case a.readerV1 != nil:
		return newTreeAdminV1(a, a.readerV1)
	case a.readerV2 != nil:
		return newTreeAdminV2(a, a.readerV2)
	default:
		return nil, ErrUnsupportedExtension
	}
}

func newTreeAdminV1(a *Admin, r *archive.ReaderV1) (*TreeAdmin, error) {
	fldrNames, err := r.BuildNameDict("fldr")
	if err != nil {
		return nil, err
	}
	fileNames, err := r.BuildNameDict("file")
	if err != nil {
		return nil, err
	}
	relmapD := r.RelmapDirs()
	relmapF := r.RelmapFiles()

	folders := make(map[int]*Folder, len(r.MainDirs))
	for i, d := range r.MainDirs {
		childD := relmapD[int64(i)]
		childF := relmapF[int64(i)]
		folders[i] = &Folder{
			Entry:          Entry{Admin: a, Index: i, ParentIdx: d.ParentIdx, Name: fldrNames[i], NextID: d.NextID},
			FileIndex:      i,
			FileCount:      len(childF),
			NextCount:      len(childD) + len(childF),
			FirstChildDir:  d.FirstChildDir,
			FirstChildFile: d.FirstChildFile,
			ChildDirIDs:    childD,
			ChildFileIDs:   childF,
		}
	}

	files := make(map[int]*File, len(r.MainFiles))
	for i, f := range r.MainFiles {
		files[i] = &File{
			Entry:     Entry{Admin: a, Index: i, ParentIdx: f.ParentIdx, Name: fileNames[i], NextID: f.NextID},
			ChunksIDs: []int{i},
			OutSize:   int64(f.Size),
			DataHash:  f.DataCRC,
		}
	}

	return &TreeAdmin{Admin: a, Folders: folders, Files: files}, nil
}

func newTreeAdminV2(a *Admin, r *archive.ReaderV2) (*TreeAdmin, error) {
	fldrNames := r.BuildNameDict("fldr")
	fileNames := r.BuildNameDict("file")
	relmapD := relmapV2(len(r.Folders), func(i int) int64 { return int64(r.Folders[i].ParentIdx) }, true)
	relmapF := relmapV2(len(r.Files), func(i int) int64 { return int64(r.Files[i].ParentIdx) }, false)

	folders := make(map[int]*Folder, len(r.Folders))
	for i, d := range r.Folders {
		childD := relmapD[int64(i)]
		childF := relmapF[int64(i)]
		folders[i] = &Folder{
			Entry:          Entry{Admin: a, Index: i, ParentIdx: int64(d.ParentIdx), Name: fldrNames[i], NextID: int64(d.NextID)},
			FileIndex:      int(d.FileIndex),
			FileCount:      int(d.FileCount),
			NextCount:      int(d.NextCount),
			FirstChildDir:  firstOr(noParent, childD),
			FirstChildFile: firstOr(noParent, childF),
			ChildDirIDs:    childD,
			ChildFileIDs:   childF,
		}
	}

	files := make(map[int]*File, len(r.Files))
	n := len(r.Files)
	for i, f := range r.Files {
		// next_id synthesizes a linked-list terminator; engine.py's
		// `i != len(main_f)` check can never be false (i never reaches
		// len), so it always yields i+1 even for the last file. That
		// is wire-independent bookkeeping the original never exercises
		// correctly, so the terminator case is fixed here.
		nextID := int64(i + 1)
		if i == n-1 {
			nextID = noParent
		}
		files[i] = &File{
			Entry:          Entry{Admin: a, Index: i, ParentIdx: int64(f.ParentIdx), Name: fileNames[i], NextID: nextID},
			ChunksIDs:      chunkIDsForOfSz(f.Chunks),
			OutSize:        int64(f.Size),
			MetadataOffset: int64(f.Metadata.Offset),
			MetadataSize:   int64(f.Metadata.Size),
		}
	}

	return &TreeAdmin{Admin: a, Folders: folders, Files: files}, nil
}

// chunkIDsForOfSz turns a FileRecordV2.Chunks OfSz into the contiguous
// run of DataChunks indices it names. The pair is not a byte range into
// any blob: ofst/16 is the starting index and size/16 the count, 16
// being the wire size of one chunk record (marshall.py's
// RMDTOC_F.chunks field reused as an index*itemsize range).
func chunkIDsForOfSz(o types.OfSz) []int {
	start := int(o.Offset) / rmdtocChunkStride
	count := int(o.Size) / rmdtocChunkStride
	ids := make([]int, count)
	for i := range ids {
		ids[i] = start + i
	}
	return ids
}

// relmapV2 groups indices [0,n) by a parent-index accessor. excludeRoot
// mirrors Reader.relmap_d's `parent_idx != -1` filter, which only
// applies to folders; relmap_f has no such filter.
func relmapV2(n int, parentOf func(int) int64, excludeRoot bool) map[int64][]int {
	out := map[int64][]int{}
	for i := 0; i < n; i++ {
		p := parentOf(i)
		if excludeRoot && p == noParent {
			continue
		}
		out[p] = append(out[p], i)
	}
	return out
}

func firstOr(dflt int64, ids []int) int64 {
	if len(ids) == 0 {
		return dflt
	}
	return int64(ids[0])
}
