package record

import (
	"archive/zip"
	"fmt"
	"io"
)

// Reader opens a previously finished store.zip for inspection — used by
// `xtr run --rerun-from` to recover meta/* entries; Output can also
// recover a specific out/* blob.
type Reader struct {
	zr *zip.ReadCloser
	dicts map[OutputKind][]byte
}

// OpenReader opens path and preloads any embedded dictionaries so out/*
// entries stored with method Stored can be decompressed on demand.
func OpenReader(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("record: opening store %s: %w", path, err)
	}
	r := &Reader{zr: zr, dicts: make(map[OutputKind][]byte)}
	for _, kind := range []OutputKind{KindStdout, KindStderr, KindCombined} {
		data, err := r.readFile(fmt.Sprintf("meta/%s.dict", kind))
		if err == nil {
			r.dicts[kind] = data
		}
	}
	return r, nil
}

func (r *Reader) readFile(name string) ([]byte, error) {
	f, err := r.zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Meta reads a meta/* JSON entry's raw bytes; the caller unmarshals into
// the type it expects (RecordOpts, a test-list shape, etc.) so this
// package stays agnostic of the external test-list/cargo-metadata schema.
func (r *Reader) Meta(name string) ([]byte, error) {
	return r.readFile("meta/" + name)
}

// Output reads an out/<hash>-<kind> entry, transparently reversing
// whichever compression it was written with (dict-compressed-and-Stored,
// or the container's own zstd method).
func (r *Reader) Output(name string, kind OutputKind) ([]byte, error) {
	f, err := r.zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("record: opening %s: %w", name, err)
	}
	defer f.Close()

	zf := r.fileHeader(name)
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("record: reading %s: %w", name, err)
	}
	if zf != nil && zf.Method == zip.Store {
		if dict, ok := r.dicts[kind]; ok {
			return decompressWithDict(raw, dict)
		}
	}
	return raw, nil
}

func (r *Reader) fileHeader(name string) *zip.File {
	for _, f := range r.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Close releases the underlying zip reader.
func (r *Reader) Close() error {
	return r.zr.Close()
}
