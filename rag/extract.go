package rag

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	MimePDF   = "application/pdf"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePlain = "text/plain"
)

// TextExtractor converts a stored blob into one text blob.
type TextExtractor interface {
	Extract(ctx context.Context, blobPath, mimeType string) (string, error)
}

// Extractor handles PDF, DOCX and plain text. It has no side effects and
// never retries; a corrupt file fails the ingestion attempt terminally.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, blobPath, mimeType string) (string, error) {
	switch mimeType {
	case MimePDF:
		return extractPDF(ctx, blobPath)
	case MimeDOCX:
		return extractDOCX(blobPath)
	case MimePlain:
		return extractPlain(blobPath)
	default:
		return "", fmt.Errorf("%w: unsupported mime type %q", ErrParse, mimeType)
	}
}

func extractPlain(blobPath string) (string, error) {
	data, err := os.ReadFile(blobPath)
	if err != nil {
		return "", fmt.Errorf("%w: read file: %v", ErrParse, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: file is not valid UTF-8", ErrParse)
	}
	return string(data), nil
}

// extractPDF pulls the page content streams out with pdfcpu and scans them
// for text-showing operators. Glyph encoding is not resolved, which is fine
// for the common case of standard encodings.
func extractPDF(ctx context.Context, blobPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pdf-extract-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := api.LoadConfiguration()
	if err := api.ExtractContentFile(blobPath, tmpDir, nil, conf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("read extracted content: %w", err)
	}

	var b strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			return "", fmt.Errorf("read page content: %w", err)
		}
		pageText := contentStreamText(data)
		if pageText != "" {
			b.WriteString(pageText)
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

// contentStreamText collects literal strings fed to the Tj/TJ/' show-text
// operators of a decoded PDF content stream.
func contentStreamText(data []byte) string {
	var (
		b       strings.Builder
		pending []string
	)
	flush := func() {
		for _, s := range pending {
			b.WriteString(s)
		}
		if len(pending) > 0 {
			b.WriteString(" ")
		}
		pending = pending[:0]
	}

	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == '(':
			s, next := readPDFString(data, i)
			pending = append(pending, s)
			i = next
		case c == 'T' && i+1 < len(data) && (data[i+1] == 'j' || data[i+1] == 'J'):
			flush()
			i += 2
		case c == '\'':
			flush()
			i++
		case c == 'B' && i+1 < len(data) && data[i+1] == 'T':
			// new text object: drop strings never shown
			pending = pending[:0]
			i += 2
		default:
			i++
		}
	}
	return strings.TrimSpace(b.String())
}

// readPDFString reads a parenthesized PDF string starting at open and returns
// its unescaped contents and the position after the closing paren.
func readPDFString(data []byte, open int) (string, int) {
	var b strings.Builder
	depth := 1
	i := open + 1
	for i < len(data) && depth > 0 {
		c := data[i]
		switch c {
		case '\\':
			if i+1 < len(data) {
				switch data[i+1] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case 'r', 'b', 'f':
					// ignore
				default:
					b.WriteByte(data[i+1])
				}
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			b.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				b.WriteByte(c)
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

// docx XML model: document.xml nests runs of <w:t> text inside <w:p>
// paragraphs.
type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []string `xml:"t"`
}

// extractDOCX opens the file as a ZIP archive and pulls the raw text runs out
// of word/document.xml, discarding all formatting.
func extractDOCX(blobPath string) (string, error) {
	reader, err := zip.OpenReader(blobPath)
	if err != nil {
		return "", fmt.Errorf("%w: not a valid DOCX archive: %v", ErrParse, err)
	}
	defer reader.Close()

	var docXML io.ReadCloser
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: open document.xml: %v", ErrParse, err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("%w: document.xml missing", ErrParse)
	}
	defer docXML.Close()

	var doc docxDocument
	if err := xml.NewDecoder(docXML).Decode(&doc); err != nil {
		return "", fmt.Errorf("%w: parse document.xml: %v", ErrParse, err)
	}

	var b strings.Builder
	for _, p := range doc.Body.Paragraphs {
		for _, r := range p.Runs {
			for _, t := range r.Text {
				b.WriteString(t)
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
