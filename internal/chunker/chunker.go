// Package chunker splits extracted document text into bounded, overlapping
// segments that become the unit of retrieval. Two strategies are provided:
// a sliding window that prefers to cut at sentence or paragraph boundaries,
// and a paragraph packer that never splits a paragraph mid-body.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of characters shared between consecutive
	// chunks so that sentences straddling a boundary are retrievable from
	// either side.
	DefaultOverlap = 200

	// boundaryLookback is how far back from the raw cut point the chunker
	// searches for a sentence-ending delimiter before falling back to a
	// paragraph break or the raw boundary.
	boundaryLookback = 200
)

// sentenceEndings are the delimiters treated as sentence boundaries, in
// preference order. The first one found wins.
var sentenceEndings = []string{". ", ".\n", "! ", "!\n", "? ", "?\n"}

// paragraphSplit matches a blank-line paragraph separator, tolerating
// whitespace on the blank line.
var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// Chunk is one bounded contiguous segment of a document's text.
type Chunk struct {
	// Index is the zero-based position of this chunk within the document.
	// Indices are contiguous: 0..n-1 with no gaps.
	Index int

	// Content is the trimmed text of the segment.
	Content string

	// StartChar and EndChar are the offsets of the untrimmed segment in the
	// source text. They are -1 when offsets are not meaningful.
	StartChar int
	EndChar   int

	// Metadata holds free-form key-value pairs attached at chunk time
	// (e.g. the paragraph chunker tags its output). May be nil.
	Metadata map[string]string
}

// Split cuts text into overlapping chunks of at most chunkSize characters.
// Before each cut it searches backward up to 200 characters for the nearest
// sentence-ending delimiter and cuts just after it; failing that it looks for
// a paragraph break in the same window; failing that it cuts at the raw
// boundary. The next window starts at max(start+1, end-overlap), which
// guarantees forward progress even when the boundary search collapses the
// window to nothing. The window that reaches the end of the text is the
// final chunk.
//
// Empty or whitespace-only input yields an empty slice, not an error.
func Split(text string, chunkSize, overlap int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 10
	}

	var chunks []Chunk
	start := 0
	index := 0

	for start < len(text) {
		end := start + chunkSize
		if end < len(text) {
			end = findBreak(text, start, end)
		} else {
			end = len(text)
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				Index:     index,
				Content:   content,
				StartChar: start,
				EndChar:   end,
			})
			index++
		}

		// The final window consumed the rest of the text; stepping back by
		// the overlap here would re-emit ever-shorter copies of the tail.
		if end == len(text) {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// findBreak returns the position to cut a window [start, end). It prefers a
// sentence-ending delimiter within the last boundaryLookback characters of the
// window, then a paragraph break in the same region, then the raw end.
func findBreak(text string, start, end int) int {
	searchStart := end - boundaryLookback
	if searchStart < start {
		searchStart = start
	}
	window := text[searchStart:end]

	for _, ending := range sentenceEndings {
		if pos := strings.LastIndex(window, ending); pos >= 0 {
			return searchStart + pos + len(ending)
		}
	}

	if pos := strings.LastIndex(window, "\n\n"); pos >= 0 {
		return searchStart + pos + 2
	}

	return end
}

// SplitByParagraphs cuts text on blank-line-delimited paragraphs and greedily
// packs consecutive paragraphs into a chunk until adding the next would exceed
// maxChunkSize, at which point the current chunk is flushed. A single
// paragraph larger than maxChunkSize becomes its own oversized chunk — a
// paragraph is never split mid-body.
func SplitByParagraphs(text string, maxChunkSize int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultChunkSize
	}

	paragraphs := paragraphSplit.Split(text, -1)

	var chunks []Chunk
	var current strings.Builder
	index := 0
	startChar := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		content := strings.TrimSpace(current.String())
		chunks = append(chunks, Chunk{
			Index:     index,
			Content:   content,
			StartChar: startChar,
			EndChar:   startChar + current.Len(),
			Metadata:  map[string]string{"type": "paragraph"},
		})
		startChar += current.Len()
		index++
		current.Reset()
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// +2 accounts for the blank-line join between paragraphs.
		if current.Len() > 0 && current.Len()+len(para)+2 > maxChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}
