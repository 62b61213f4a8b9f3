package parsers

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// MarkdownParser reads a whole file as one document. An optional YAML front
// matter block supplies the title, session number and tags.
type MarkdownParser struct{}

// Parse reads the document and its front matter.
func (p *MarkdownParser) Parse(r io.Reader) ([]RawDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	doc := RawDocument{LineNum: 1}
	body := string(data)

	if meta, rest, ok := splitFrontMatter(body); ok {
		if err := yaml.Unmarshal([]byte(meta), &doc); err != nil {
			return nil, fmt.Errorf("parsing front matter: %w", err)
		}
		body = rest
	}
	doc.Content = strings.TrimSpace(body)

	if doc.Content == "" {
		return []RawDocument{}, nil
	}
	return []RawDocument{doc}, nil
}

// splitFrontMatter separates a leading "---" delimited block from the body.
func splitFrontMatter(text string) (meta, body string, ok bool) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), len(text)+1)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != frontMatterDelimiter {
		return "", text, false
	}

	var lines []string
	offset := len(scanner.Text()) + 1
	for scanner.Scan() {
		line := scanner.Text()
		offset += len(line) + 1
		if strings.TrimSpace(line) == frontMatterDelimiter {
			if offset > len(text) {
				offset = len(text)
			}
			return strings.Join(lines, "\n"), text[offset:], true
		}
		lines = append(lines, line)
	}
	return "", text, false
}
