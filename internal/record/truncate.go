package record

import "fmt"

// truncationMarker is inserted between the retained head and tail once an
// output exceeds max-output-size.
func truncationMarker(truncatedBytes int) []byte {
	return []byte(fmt.Sprintf("\n\n... [truncated %d bytes]...\n\n", truncatedBytes))
}

// Truncate returns data unchanged if it already fits within maxSize, or a
// head|marker|tail reconstruction otherwise. It always returns the
// original, untruncated length alongside the (possibly truncated) bytes;
// the entry in the archive records both.
//
// When maxSize is smaller than the marker itself, correctness trumps the
// size budget: Truncate falls back to the marker alone rather than
// producing a head/tail split that would not actually shrink the output.
func Truncate(data []byte, maxSize int) (out []byte, originalLen int) {
	originalLen = len(data)
	if maxSize <= 0 || len(data) <= maxSize {
		return data, originalLen
	}

	truncated := len(data) - maxSize
	marker := truncationMarker(truncated)
	if len(marker) >= maxSize {
		// Nothing of head/tail survives; the marker reports the full
		// original length as truncated since no bytes are kept.
		return truncationMarker(originalLen), originalLen
	}

	remaining := maxSize - len(marker)
	headLen := remaining / 2
	tailLen := remaining - headLen

	out = make([]byte, 0, maxSize)
	out = append(out, data[:headLen]...)
	out = append(out, marker...)
	out = append(out, data[len(data)-tailLen:]...)
	return out, originalLen
}
