package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

const (
	defaultMaxBytes = 32 << 20
	maxScannedPages = 5
)

var jpegMagic = []byte{0xFF, 0xD8}

// ImageReader turns an encoded image into text.
type ImageReader interface {
	ReadImage(ctx context.Context, image []byte) (string, error)
}

// Extractor reads stored files and returns their text: the text layer for PDFs (scanned pages go
// through the vision model), a vision model transcription for images.
type Extractor struct {
	storage  ports.ObjectStorage
	images   ImageReader
	maxBytes int64
}

func NewExtractor(storage ports.ObjectStorage, images ImageReader, maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Extractor{storage: storage, images: images, maxBytes: maxBytes}
}

func (e *Extractor) Extract(ctx context.Context, storagePath, mimeType string) (string, error) {
	if !domain.SupportsTextExtraction(mimeType) {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported media type %q", mimeType))
	}

	raw, err := e.read(ctx, storagePath)
	if err != nil {
		return "", err
	}

	var text string
	if isPDF(mimeType) {
		text, err = pdfText(raw)
		if err == nil && strings.TrimSpace(text) == "" {
			text, err = e.readScannedPDF(ctx, raw)
		}
	} else {
		text, err = e.images.ReadImage(ctx, raw)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// readScannedPDF sends the JPEG page images of a PDF without a text layer to the vision model.
func (e *Extractor) readScannedPDF(ctx context.Context, raw []byte) (string, error) {
	images := pdfPageImages(raw, maxScannedPages)
	if len(images) == 0 {
		return "", nil
	}
	pages := make([]string, 0, len(images))
	for i, image := range images {
		text, err := e.images.ReadImage(ctx, image)
		if err != nil {
			return "", fmt.Errorf("read scanned page %d: %w", i+1, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func (e *Extractor) read(ctx context.Context, storagePath string) ([]byte, error) {
	reader, err := e.storage.Open(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return nil, fmt.Errorf("source file exceeds %d bytes", e.maxBytes)
	}
	return raw, nil
}

func isPDF(mimeType string) bool {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.EqualFold(strings.TrimSpace(mt), "application/pdf")
}

// pdfText returns the embedded text layer. Scanned PDFs without one yield "".
func pdfText(raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	if buf.Len() == 0 {
		return "", nil
	}
	return buf.String(), nil
}

// pdfPageImages returns up to limit DCTDecode (JPEG) image streams in file order. The pdf reader
// cannot decode DCT streams, so the raw stream bodies are cut out between stream and endstream.
func pdfPageImages(raw []byte, limit int) [][]byte {
	var images [][]byte
	rest := raw
	for len(images) < limit {
		i := bytes.Index(rest, []byte("stream"))
		if i < 0 {
			break
		}
		if i >= 3 && string(rest[i-3:i]) == "end" {
			rest = rest[i+len("stream"):]
			continue
		}
		header := rest[:i]
		if j := bytes.LastIndex(header, []byte("obj")); j >= 0 {
			header = header[j:]
		}
		data := bytes.TrimPrefix(rest[i+len("stream"):], []byte("\r"))
		data = bytes.TrimPrefix(data, []byte("\n"))
		end := bytes.Index(data, []byte("endstream"))
		if end < 0 {
			break
		}
		body := bytes.TrimRight(data[:end], "\r\n")
		if bytes.Contains(header, []byte("/DCTDecode")) && bytes.HasPrefix(body, jpegMagic) {
			images = append(images, body)
		}
		rest = data[end+len("endstream"):]
	}
	return images
}
