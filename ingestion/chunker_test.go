package ingestion

import (
	"strings"
	"testing"
)

func TestChunkTextRoundTrip(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("This is sentence number one about vectors. ")
		sb.WriteString("Here is another sentence that talks about magnitude and direction! ")
		sb.WriteString("Does a third sentence help coverage? ")
	}
	body := strings.TrimSpace(sb.String())

	const (
		size    = 800
		overlap = 100
	)
	chunks := ChunkText(body, size, overlap)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var rebuilt strings.Builder
	for i, chunk := range chunks {
		runes := []rune(chunk)
		if i == 0 {
			rebuilt.WriteString(chunk)
			continue
		}
		if len(runes) < overlap {
			t.Fatalf("chunk %d shorter than the overlap: %d runes", i, len(runes))
		}
		rebuilt.WriteString(string(runes[overlap:]))
	}
	if rebuilt.String() != body {
		t.Fatal("removing overlaps did not reproduce the original body")
	}
}

func TestChunkTextRespectsMaxLength(t *testing.T) {
	body := strings.Repeat("Short sentence here. ", 200)
	chunks := ChunkText(strings.TrimSpace(body), 300, 50)
	for i, chunk := range chunks {
		if len([]rune(chunk)) > 300 {
			t.Fatalf("chunk %d exceeds max length: %d runes", i, len([]rune(chunk)))
		}
	}
}

func TestChunkTextOverlapRepeatsTail(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat("Alpha beta gamma delta epsilon zeta. ", 30))
	const overlap = 40
	chunks := ChunkText(body, 200, overlap)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		curr := []rune(chunks[i])
		tail := string(prev[len(prev)-overlap:])
		lead := string(curr[:overlap])
		if tail != lead {
			t.Fatalf("chunk %d lead does not repeat predecessor tail:\n tail %q\n lead %q", i, tail, lead)
		}
	}
}

func TestChunkTextPrefersSentenceBoundaries(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat("One full sentence ends right here. ", 50))
	chunks := ChunkText(body, 250, 30)
	for i, chunk := range chunks[:len(chunks)-1] {
		trimmed := strings.TrimRight(chunk, " ")
		if !strings.HasSuffix(trimmed, ".") {
			t.Fatalf("chunk %d does not end on a sentence boundary: %q", i, chunk)
		}
	}
}

func TestChunkTextLongSentenceFallsBackToTruncation(t *testing.T) {
	body := strings.Repeat("word ", 300) // no sentence boundary at all
	chunks := ChunkText(strings.TrimSpace(body), 200, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected hard-truncated chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len([]rune(chunk)) > 200 {
			t.Fatalf("chunk %d exceeds window after truncation fallback", i)
		}
	}
}

func TestChunkTextEmptyBody(t *testing.T) {
	if chunks := ChunkText("", 800, 100); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty body, got %d", len(chunks))
	}
}

func TestChunkTextShortBodySingleChunk(t *testing.T) {
	body := "Vectors have magnitude and direction."
	chunks := ChunkText(body, 800, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(chunks))
	}
	if chunks[0] != body {
		t.Fatalf("single chunk should equal the body, got %q", chunks[0])
	}
}
