package ingest

import "strings"

// Chunker splits document text into overlapping chunks sized for the
// embedding model's context window. Boundaries prefer paragraph breaks, then
// sentence ends, then whitespace, so a chunk rarely cuts a word in half.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. size is the target chunk length in runes;
// overlap is how many trailing runes of one chunk reappear at the start of
// the next. overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split returns the chunks of text in document order. Whitespace-only input
// yields no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.breakpoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// breakpoint moves end backwards to the most natural split inside
// (start, end]: paragraph break, sentence end, or any whitespace. When the
// window has none, the hard cut stands.
func (c *Chunker) breakpoint(runes []rune, start, end int) int {
	// Only search the back half of the window so chunks keep a
	// reasonable minimum size.
	floor := start + c.size/2

	window := string(runes[floor:end])
	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return floor + len([]rune(window[:i]))
	}
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return floor + len([]rune(window[:i+len(sep)]))
		}
	}
	if i := strings.LastIndexAny(window, " \t"); i >= 0 {
		return floor + len([]rune(window[:i]))
	}
	return end
}
