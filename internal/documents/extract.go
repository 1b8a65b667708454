package documents

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// PageText is one page of extracted text, 1-based.
type PageText struct {
	Number int
	Text   string
}

// ExtractPages pulls per-page text from an in-memory report payload.
// DOCX carries no page boundaries, so its content is returned as one page.
func ExtractPages(ctx context.Context, data []byte, mimeType, fileName string) ([]PageText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch normalizeMimeType(mimeType, fileName) {
	case mimePDF:
		return extractPDF(data)
	case mimeDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return nil, err
		}
		return []PageText{{Number: 1, Text: text}}, nil
	default:
		return nil, fmt.Errorf("unsupported mime type: %s", mimeType)
	}
}

func normalizeMimeType(mimeType, fileName string) string {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	if normalized == mimePDF || normalized == mimeDOCX {
		return normalized
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	}
	return normalized
}

func extractPDF(data []byte) ([]PageText, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, err
	}

	var pages []PageText
	for i := 1; i <= pdfReader.NumPage(); i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page shouldn't discard the rest of the report.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, PageText{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, errors.New("no extractable text in pdf")
	}
	return pages, nil
}

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}

		var doc docxDocument
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return "", err
		}
		var b strings.Builder
		for _, para := range doc.Body.Paragraphs {
			for _, run := range para.Runs {
				b.WriteString(run.Text)
			}
			b.WriteString("\n\n")
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			return "", errors.New("no extractable text in docx")
		}
		return text, nil
	}
	return "", errors.New("docx missing word/document.xml")
}
