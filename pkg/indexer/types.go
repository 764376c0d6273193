package indexer

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// FileID identifies a file independently of how its path is spelled.
type FileID uint64

// File is one file known to the engine. Path is relative to the project root
// and uses forward slashes.
type File struct {
	ID   FileID
	Path string
}

// NewFile normalizes path and derives its ID.
func NewFile(path string) File {
	clean := filepath.ToSlash(filepath.Clean(path))
	return File{ID: FileIDFor(clean), Path: clean}
}

// FileIDFor hashes a normalized path into a FileID.
func FileIDFor(path string) FileID {
	return FileID(xxhash.Sum64String(path))
}

func (f File) String() string {
	return f.Path
}

// Kind is the operation requested for a file.
type Kind uint8

const (
	// KindUpdate (re)indexes the file's current content.
	KindUpdate Kind = iota
	// KindDelete removes the file's values from the index.
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Request asks for one file to be updated or deleted. It is immutable once
// enqueued.
type Request struct {
	File File
	Kind Kind
}

// Update is shorthand for an update request on path.
func Update(path string) Request {
	return Request{File: NewFile(path), Kind: KindUpdate}
}

// Delete is shorthand for a delete request on path.
func Delete(path string) Request {
	return Request{File: NewFile(path), Kind: KindDelete}
}

// Stamp is an opaque snapshot token describing a file's state when a job was
// picked up. Larger stamps describe later states. Zero means unknown.
type Stamp uint64
