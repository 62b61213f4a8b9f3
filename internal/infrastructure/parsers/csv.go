package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses one document per row.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed documents.
// Expected columns: name, content, and optionally session and tags
// (semicolon separated).
func (p *CSVParser) Parse(r io.Reader) ([]RawDocument, error) {
	reader := csv.NewReader(r)

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range []string{"name", "content"} {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawDocuments.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawDocument, error) {
	var docs []RawDocument
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		doc, err := p.parseRecord(record, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// parseRecord converts a CSV record to a RawDocument.
func (p *CSVParser) parseRecord(record []string, colIndex map[string]int, lineNum int) (RawDocument, error) {
	doc := RawDocument{
		Name:    getColumn(record, colIndex, "name"),
		Content: getColumn(record, colIndex, "content"),
		LineNum: lineNum,
	}

	if s := getColumn(record, colIndex, "session"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return RawDocument{}, fmt.Errorf("line %d: invalid session number %q: %w", lineNum, s, err)
		}
		doc.Session = &n
	}

	if tags := getColumn(record, colIndex, "tags"); tags != "" {
		for _, t := range strings.Split(tags, ";") {
			if t = strings.TrimSpace(t); t != "" {
				doc.Tags = append(doc.Tags, t)
			}
		}
	}

	return doc, nil
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
