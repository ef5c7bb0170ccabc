package ingestion

import "unicode"

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
)

// ChunkText splits body into windows of at most size characters. Each
// window repeats the trailing overlap characters of its predecessor, so
// text spanning a window boundary stays retrievable from at least one
// chunk. Windows end on a sentence boundary when one is available inside
// the window; a sentence longer than the window is hard-truncated.
//
// Dropping the leading overlap characters from every window after the
// first and concatenating reproduces body exactly.
func ChunkText(body string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(body)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	pos := 0
	for pos < len(runes) {
		end := pos + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[pos:]))
			break
		}

		cut := lastSentenceEnd(runes, pos+overlap, end)
		if cut < 0 {
			cut = end
		}
		chunks = append(chunks, string(runes[pos:cut]))
		pos = cut - overlap
	}

	return chunks
}

// lastSentenceEnd returns the index just past the latest sentence-ending
// punctuation in runes[min:end], or -1. The boundary must sit past min so
// every window advances beyond the repeated overlap.
func lastSentenceEnd(runes []rune, min, end int) int {
	for i := end - 1; i >= min; i-- {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	return -1
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
