package embedding

import "strings"

// Chunker splits extracted text into overlapping word-window chunks before
// embedding, so long statute pages stay inside the model's context and
// retrieval can land on the relevant passage.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker builds a chunker with the given window and overlap, both in
// words. Zero or negative values fall back to the defaults (800/100).
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 100
		if overlap >= size {
			overlap = size / 4
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split returns the text's chunks in order. Short texts yield one chunk;
// empty text yields none.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= c.size {
		return []string{strings.Join(words, " ")}
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
