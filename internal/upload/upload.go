// Package upload validates documents before they are sent for translation.
// All checks run locally, so a rejected file never reaches the network.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxFileSize is the largest document accepted for upload.
const MaxFileSize = 20 * 1024 * 1024

const (
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText = "text/plain"
	MIMEHTML = "text/html"
)

var mimeByExt = map[string]string{
	".docx": MIMEDocx,
	".txt":  MIMEText,
	".html": MIMEHTML,
	".htm":  MIMEHTML,
	".md":   MIMEHTML,
}

// ValidationError describes a document rejected before submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Document is a validated file ready for upload.
type Document struct {
	Name     string
	MIMEType string
	Size     int64
	Body     []byte
}

func (d *Document) Reader() io.Reader {
	return bytes.NewReader(d.Body)
}

// Extensions lists the accepted file extensions in sorted order.
func Extensions() []string {
	exts := make([]string, 0, len(mimeByExt))
	for ext := range mimeByExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// MIMEType returns the content type a file with this name is uploaded as.
func MIMEType(name string) (string, bool) {
	mime, ok := mimeByExt[strings.ToLower(filepath.Ext(name))]
	return mime, ok
}

// Check validates a file name and its declared size without reading any
// content.
func Check(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "file_name", Reason: "file name is required"}
	}
	if _, ok := MIMEType(name); !ok {
		return &ValidationError{
			Field:  "file_type",
			Reason: fmt.Sprintf("unsupported file type %q (accepted: %s)", filepath.Ext(name), strings.Join(Extensions(), ", ")),
		}
	}
	if size > MaxFileSize {
		return &ValidationError{
			Field:  "file_size",
			Reason: fmt.Sprintf("file is %s, limit is %s", FormatSize(size), FormatSize(MaxFileSize)),
		}
	}
	if size == 0 {
		return &ValidationError{Field: "file_size", Reason: "file is empty"}
	}
	return nil
}

// Open validates and loads the file at path. The size limit is enforced from
// the file's metadata before it is read.
func Open(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, &ValidationError{Field: "file", Reason: fmt.Sprintf("%s is a directory", path)}
	}

	name := filepath.Base(path)
	if err := Check(name, info.Size()); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Read(name, info.Size(), f)
}

// Read validates a document supplied as a stream, such as a multipart upload.
// size is the declared length; a stream longer than MaxFileSize is rejected
// even if the declaration was wrong.
func Read(name string, size int64, r io.Reader) (*Document, error) {
	if err := Check(name, size); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, &ValidationError{
			Field:  "file_size",
			Reason: fmt.Sprintf("file exceeds %s", FormatSize(MaxFileSize)),
		}
	}

	return prepare(name, data)
}

func prepare(name string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Field: "file_size", Reason: "file is empty"}
	}

	ext := strings.ToLower(filepath.Ext(name))
	sniffed := http.DetectContentType(data)

	switch ext {
	case ".docx":
		// A .docx file is a zip container.
		if sniffed != "application/zip" {
			return nil, &ValidationError{
				Field:  "file_content",
				Reason: fmt.Sprintf("%s is not a Word document (detected %s)", name, sniffed),
			}
		}
	default:
		if !strings.HasPrefix(sniffed, "text/") {
			return nil, &ValidationError{
				Field:  "file_content",
				Reason: fmt.Sprintf("%s does not contain text (detected %s)", name, sniffed),
			}
		}
	}

	if ext == ".md" {
		data = markdownToHTML(data, strings.TrimSuffix(name, filepath.Ext(name)))
		name = htmlName(name)
		if int64(len(data)) > MaxFileSize {
			return nil, &ValidationError{
				Field:  "file_size",
				Reason: fmt.Sprintf("converted HTML exceeds %s", FormatSize(MaxFileSize)),
			}
		}
	}

	mime, _ := MIMEType(name)
	return &Document{
		Name:     name,
		MIMEType: mime,
		Size:     int64(len(data)),
		Body:     data,
	}, nil
}

// FormatSize renders a byte count the way the upload form shows it.
func FormatSize(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
