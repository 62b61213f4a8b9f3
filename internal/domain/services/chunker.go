package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the target size of an embedding chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is how far each window steps back from its cut.
	DefaultChunkOverlap = 100
)

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)

// TextChunk is one slice of an entity's content.
type TextChunk struct {
	Text       string
	Index      int
	HeaderPath []string
}

// Chunker splits markdown-ish content into heading-aware, overlapping chunks.
type Chunker struct {
	TargetSize int
	Overlap    int
}

// NewChunker returns a chunker with the default size and overlap.
func NewChunker() *Chunker {
	return &Chunker{TargetSize: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

type section struct {
	headers []string
	text    string
}

// Chunk splits content into ordered chunks. The title becomes the top-level
// heading so the first section carries it in its header path. Output is
// deterministic and never contains empty chunks.
func (c *Chunker) Chunk(content, title string) []TextChunk {
	size, overlap := c.TargetSize, c.Overlap
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	text := content
	if title = strings.TrimSpace(title); title != "" {
		text = "# " + title + "\n\n" + content
	}

	chunks := []TextChunk{}
	for _, sec := range splitSections(text) {
		for _, piece := range splitWindow(sec.text, size, overlap) {
			chunks = append(chunks, TextChunk{
				Text:       piece,
				Index:      len(chunks),
				HeaderPath: sec.headers,
			})
		}
	}
	return chunks
}

// splitSections cuts text at heading lines. Each section carries the stack of
// enclosing headings, truncated to the depth of its own heading.
func splitSections(text string) []section {
	var (
		sections []section
		stack    []string
		body     []string
	)

	flush := func() {
		joined := strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
		if joined == "" {
			return
		}
		headers := make([]string, len(stack))
		copy(headers, stack)
		sections = append(sections, section{headers: headers, text: joined})
	}

	for _, line := range strings.Split(text, "\n") {
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			body = append(body, line)
			continue
		}
		flush()
		depth := len(m[1])
		if len(stack) >= depth {
			stack = stack[:depth-1]
		}
		stack = append(stack, m[2])
	}
	flush()

	return sections
}

// splitWindow slides a window of size over text. Cuts prefer the last
// paragraph break, then the last sentence break, in the back half of the
// window.
func splitWindow(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var pieces []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = cutPoint(text, start, end)
		}
		if end <= start {
			// A window narrower than one rune still takes the whole rune.
			_, n := utf8.DecodeRuneInString(text[start:])
			end = start + n
		}

		if piece := strings.TrimSpace(text[start:end]); piece != "" {
			pieces = append(pieces, piece)
		}
		if end >= len(text) {
			break
		}

		next := alignRune(text, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

func cutPoint(text string, start, end int) int {
	window := text[start:end]
	half := len(window) / 2

	if i := strings.LastIndex(window, "\n\n"); i >= half {
		return start + i + 2
	}
	if i := lastSentenceBreak(window); i >= half {
		return start + i + 1
	}
	return alignRune(text, end)
}

// lastSentenceBreak returns the index of the final punctuation mark that is
// followed by whitespace, or -1.
func lastSentenceBreak(window string) int {
	best := -1
	for _, sep := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if i := strings.LastIndex(window, sep); i > best {
			best = i
		}
	}
	return best
}

// alignRune moves i back to the start of a UTF-8 sequence.
func alignRune(text string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(text) {
		return len(text)
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
