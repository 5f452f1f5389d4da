package diskgraph

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/diskgraph/disk"
	"github.com/hupe1980/diskgraph/internal/mmap"
)

// SaveFile writes an artifact atomically: writeFunc streams into a
// buffered temp file in the target directory, which is fsynced and
// renamed over path. On any error the temp file is removed and the
// target is left untouched.
func SaveFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

// Artifact is an opened on-disk index backed by a memory mapping. It
// owns the mapping; Close releases it and invalidates all views.
type Artifact struct {
	*disk.Index
	m *mmap.Mapping
}

// OpenFile memory-maps the artifact at path and parses its header. The
// mapping is advised for random access, the dominant pattern of graph
// traversal.
func OpenFile(path string) (*Artifact, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	_ = m.Advise(mmap.AccessRandom)

	ix, err := disk.OpenIndex(m, 0)
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	return &Artifact{Index: ix, m: m}, nil
}

// Close unmaps the artifact. Idempotent.
func (a *Artifact) Close() error {
	return a.m.Close()
}
