package ingest

import (
	"context"
	"time"
)

// StoredFile describes an upload saved under the store root.
type StoredFile struct {
	Path     string // absolute path of the stored copy
	Filename string // stored base name, <uuid>_<original>
	Original string // sanitised client filename
	Ext      string // lowercased, without '.'
	Size     int64
	HashHex  string // sha256 of the content
	StoredAt time.Time
}

// FileResult is the per-file outcome of a directory walk.
type FileResult struct {
	SourcePath string
	Err        string
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// PathFunc handles one matched file during a walk.
type PathFunc func(ctx context.Context, path string) error
