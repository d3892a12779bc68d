// Package chunker splits document text into overlapping fixed-size windows.
package chunker

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Window parameters used when a caller does not choose its own.
const (
	DefaultSize    = 600
	DefaultOverlap = 80
)

// ErrInvalidChunkingParameters is returned when the window would never advance
// or has no size.
var ErrInvalidChunkingParameters = errors.New("invalid chunking parameters")

// Validate checks that size and overlap describe a window that advances.
// size must be positive, overlap non-negative and strictly smaller than size.
func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidChunkingParameters, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidChunkingParameters, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: overlap %d must be less than chunk size %d", ErrInvalidChunkingParameters, overlap, size)
	}
	return nil
}

// Chunk splits text into windows of at most size characters, each starting
// size-overlap characters after the previous one. Only the final window may be
// shorter than size. Empty text yields no windows.
//
// Sizes are counted in Unicode code points so multi-byte characters are never split.
func Chunk(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	// offsets[i] is the byte offset of the i-th rune; the extra entry marks the end.
	offsets := runeOffsets(text)
	length := len(offsets) - 1
	step := size - overlap

	chunks := make([]string, 0, windowCount(length, size, overlap))
	for start := 0; start < length; start += step {
		end := min(start+size, length)
		chunks = append(chunks, text[offsets[start]:offsets[end]])
		if end >= length {
			break
		}
	}
	return chunks, nil
}

// windowCount returns the number of windows Chunk produces for text of the given length.
func windowCount(length, size, overlap int) int {
	if length == 0 {
		return 0
	}
	if length <= size {
		return 1
	}
	step := size - overlap
	return 1 + (length-size+step-1)/step
}

func runeOffsets(text string) []int {
	offsets := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}
