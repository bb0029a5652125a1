package record

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// store owns store.zip: content-addressed out/* entries (optionally
// dictionary-compressed and stored raw) plus meta/* entries written
// through the zip container's own zstd compression.
type store struct {
	f *os.File
	zw *zip.Writer
	mu sync.Mutex
	dicts map[OutputKind][]byte
	seen map[string]string // "<hash>-<kind>" -> entry name, for dedup
	opts []OutputEntry

	uncompressed int64 // sum of original (pre-truncation) output sizes
}

func openStore(path string, dicts map[OutputKind][]byte) (*store, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("record: creating store: %w", err)
	}
	s := &store{
		f: f,
		zw: zip.NewWriter(f),
		dicts: dicts,
		seen: make(map[string]string),
	}
	for kind, dict := range dicts {
		if err := s.writeRaw(fmt.Sprintf("meta/%s.dict", kind), dict); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

// putOutput content-addresses data (already truncated by the caller) under
// out/<hash>-<kind>, compressing it with kind's dictionary when one was
// supplied at openStore time. Identical bytes for the same kind are
// written once.
func (s *store) putOutput(kind OutputKind, data []byte, originalLen int) (OutputEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	dedupKey := hash + "-" + string(kind)
	name := fmt.Sprintf("out/%s-%s", hash, kind)

	s.uncompressed += int64(originalLen)

	if existing, ok := s.seen[dedupKey]; ok {
		return OutputEntry{Name: existing, Kind: kind, FinalSize: len(data), OriginalSize: originalLen}, nil
	}

	dict, hasDict := s.dicts[kind]
	entry := OutputEntry{Name: name, Kind: kind, FinalSize: len(data), OriginalSize: originalLen, DictCompressed: hasDict}

	if hasDict {
		compressed, err := compressWithDict(data, dict)
		if err != nil {
			return OutputEntry{}, fmt.Errorf("record: dict-compressing %s: %w", name, err)
		}
		if err := s.writeStored(name, compressed); err != nil {
			return OutputEntry{}, err
		}
	} else {
		if err := s.writeZstd(name, data); err != nil {
			return OutputEntry{}, err
		}
	}

	s.seen[dedupKey] = name
	s.opts = append(s.opts, entry)
	return entry, nil
}

// writeStored writes already-compressed bytes verbatim, flagged as the
// zip Store method — readers know to decompress manually via the
// matching meta/<kind>.dict.
func (s *store) writeStored(name string, data []byte) error {
	w, err := s.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("record: creating entry %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

// writeZstd writes data through the zip container's own registered zstd
// method.
func (s *store) writeZstd(name string, data []byte) error {
	w, err := s.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zstdMethod})
	if err != nil {
		return fmt.Errorf("record: creating entry %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

// writeRaw writes an entry with zip.Store (no compression), used for
// dictionary blobs which are themselves already near-incompressible
// trained data — stored uncompressed to avoid wasted CPU.
func (s *store) writeRaw(name string, data []byte) error {
	w, err := s.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("record: creating entry %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

// writeJSON marshals v and writes it as a zstd-compressed meta entry.
func (s *store) writeJSON(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return fmt.Errorf("record: marshaling %s: %w", name, err)
	}
	return s.writeZstd(name, data)
}

// close finalizes the zip container and returns the on-disk (compressed)
// size alongside the number of distinct out/* entries written.
func (s *store) close() (compressed int64, entries int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.zw.Close(); err != nil {
		s.f.Close()
		return 0, 0, fmt.Errorf("record: closing store: %w", err)
	}
	info, err := s.f.Stat()
	if err != nil {
		s.f.Close()
		return 0, 0, fmt.Errorf("record: statting store: %w", err)
	}
	return info.Size(), len(s.seen), s.f.Close()
}

// abort best-effort finalizes the container on a drop-without-finish path
// ("Finalization": errors are ignored since drop is
// typically on panic).
func (s *store) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.zw.Close()
	_ = s.f.Close()
}

func compressWithDict(data, dict []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderDict(dict))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// decompressWithDict reverses compressWithDict; used by Reader.Output
// to recover a Stored, dictionary-compressed out/* entry from a prior
// archive.
func decompressWithDict(data, dict []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderDicts(dict))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
