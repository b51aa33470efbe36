package ingest

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// RawDocument is one loaded source file before splitting.
type RawDocument struct {
	Source string
	Text   string
}

// Loader reads raw documents from a directory. Unrecognized file
// types are skipped and reported, never fatal for the batch.
type Loader struct {
	logger *log.Logger
}

func NewLoader(logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &Loader{logger: logger}
}

// Load reads every .txt and .pdf file in dir. A single unreadable
// file is logged and skipped so one bad document cannot abort the
// whole rebuild.
func (l *Loader) Load(dir string) ([]RawDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading document directory %s: %w", dir, err)
	}

	var docs []RawDocument
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		var text string
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt":
			text, err = loadText(path)
		case ".pdf":
			text, err = loadPDF(path)
		default:
			l.logger.Printf("skipping unrecognized file: %s", entry.Name())
			continue
		}
		if err != nil {
			l.logger.Printf("failed to load %s: %v", entry.Name(), err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			l.logger.Printf("no text extracted from %s", entry.Name())
			continue
		}
		docs = append(docs, RawDocument{Source: entry.Name(), Text: text})
	}
	return docs, nil
}

func loadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func loadPDF(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
