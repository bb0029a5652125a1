package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// eventLogBufferSize is the internal buffer between the JSON encoder and
// the zstd stream.
const eventLogBufferSize = 128 * 1024

// eventLog owns run.log.zst: a zstd level-3 stream of newline-delimited
// TestEventSummary JSON objects.
type eventLog struct {
	f *os.File
	buf *bufio.Writer
	enc *zstd.Encoder

	uncompressed int64
	lines int
}

func openEventLog(path string) (*eventLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("record: creating event log: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("record: opening zstd encoder: %w", err)
	}
	return &eventLog{
		f: f,
		buf: bufio.NewWriterSize(enc, eventLogBufferSize),
		enc: enc,
	}, nil
}

func (l *eventLog) append(ev TestEventSummary) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("record: marshaling event: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.buf.Write(data); err != nil {
		return fmt.Errorf("record: writing event: %w", err)
	}
	l.uncompressed += int64(len(data))
	l.lines++
	return nil
}

func (l *eventLog) close() (compressed, uncompressed int64, err error) {
	if err := l.buf.Flush(); err != nil {
		l.enc.Close()
		l.f.Close()
		return 0, 0, fmt.Errorf("record: flushing event log buffer: %w", err)
	}
	if err := l.enc.Close(); err != nil {
		l.f.Close()
		return 0, 0, fmt.Errorf("record: closing zstd encoder: %w", err)
	}
	info, err := l.f.Stat()
	if err != nil {
		l.f.Close()
		return 0, 0, fmt.Errorf("record: statting event log: %w", err)
	}
	return info.Size(), l.uncompressed, l.f.Close()
}

// abort flushes and finalizes the zstd stream best-effort, ignoring
// errors — the drop-without-finish path.
func (l *eventLog) abort() {
	_ = l.buf.Flush()
	_ = l.enc.Close()
	_ = l.f.Close()
}
