package record

import (
	"archive/zip"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMethod is the zip compression method ID for Zstandard per the
// PKWARE APPNOTE extension ("every out/* file is either
// Stored (dict-compressed) or Zstd (plain)"). archive/zip has no builtin
// support for it, so this package registers an encoder/decoder pair once
// at init — every other entry (meta/*.json, and out/* with no matching
// dictionary) goes through this method transparently via zip.Writer.
const zstdMethod = 93

var registerOnce sync.Once

func registerZstdMethod() {
	registerOnce.Do(func() {
		zip.RegisterCompressor(zstdMethod, func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		})
		zip.RegisterDecompressor(zstdMethod, func(r io.Reader) io.ReadCloser {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return errReadCloser{err}
			}
			return decoderReadCloser{dec}
		})
	})
}

// decoderReadCloser adapts *zstd.Decoder (whose Close takes no error) to
// io.ReadCloser, which archive/zip's Decompressor signature requires.
type decoderReadCloser struct {
	*zstd.Decoder
}

func (d decoderReadCloser) Close() error {
	d.Decoder.Close()
	return nil
}

// errReadCloser reports err on every Read, used when the decoder itself
// fails to construct (e.g. a truncated stream).
type errReadCloser struct{ err error }

func (e errReadCloser) Read([]byte) (int, error) { return 0, e.err }
func (e errReadCloser) Close() error { return nil }

func init() {
	registerZstdMethod()
}
