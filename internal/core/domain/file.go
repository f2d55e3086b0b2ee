package domain

import (
	"strings"
	"time"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the pipeline is done with a record in this status.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MetadataProcessingError is the metadata key carrying why a file could not be processed.
const MetadataProcessingError = "processingError"

type File struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	FolderID         *string          `json:"folderId"`
	Name             string           `json:"name"`
	OriginalName     string           `json:"originalName"`
	Size             int64            `json:"size"`
	MimeType         string           `json:"mimeType"`
	StoragePath      string           `json:"storagePath"`
	OCRText          string           `json:"ocrText,omitempty"`
	AISummary        string           `json:"aiSummary,omitempty"`
	Tags             []string         `json:"tags"`
	Metadata         map[string]any   `json:"metadata"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// DisplaySource is the text summarization and tagging fall back to when nothing was extracted.
func (f *File) DisplaySource() string {
	if name := strings.TrimSpace(f.OriginalName); name != "" {
		return name
	}
	return strings.TrimSpace(f.Name)
}

// ProcessingOptions selects which pipeline steps run for one file.
type ProcessingOptions struct {
	ExtractText     bool `json:"extract_text"`
	GenerateSummary bool `json:"generate_summary"`
	AutoTag         bool `json:"auto_tag"`
}

func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		ExtractText:     true,
		GenerateSummary: true,
		AutoTag:         true,
	}
}

// ProcessingResult is what the pipeline writes back in its single final update.
type ProcessingResult struct {
	OCRText   string
	AISummary string
	Tags      []string
	Status    ProcessingStatus
}

var ocrMediaTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"image/gif":       {},
	"image/webp":      {},
	"application/pdf": {},
}

// SupportsTextExtraction reports whether the declared media type is on the OCR allow-list.
func SupportsTextExtraction(mimeType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	_, ok := ocrMediaTypes[mediaType]
	return ok
}

// FileFilter narrows file listings. An empty FolderID lists everything; RootOnly lists unfiled files.
type FileFilter struct {
	FolderID string
	RootOnly bool
	Status   ProcessingStatus
}

// FilePatch is a partial update; nil fields are left untouched.
type FilePatch struct {
	Name             *string
	FolderID         **string
	Tags             *[]string
	OCRText          *string
	AISummary        *string
	Metadata         *map[string]any
	ProcessingStatus *ProcessingStatus
}

func (p FilePatch) Empty() bool {
	return p.Name == nil && p.FolderID == nil && p.Tags == nil && p.OCRText == nil &&
		p.AISummary == nil && p.Metadata == nil && p.ProcessingStatus == nil
}

// Apply writes the patch onto f in place.
func (p FilePatch) Apply(f *File) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.FolderID != nil {
		f.FolderID = *p.FolderID
	}
	if p.Tags != nil {
		f.Tags = *p.Tags
	}
	if p.OCRText != nil {
		f.OCRText = *p.OCRText
	}
	if p.AISummary != nil {
		f.AISummary = *p.AISummary
	}
	if p.Metadata != nil {
		f.Metadata = *p.Metadata
	}
	if p.ProcessingStatus != nil {
		f.ProcessingStatus = *p.ProcessingStatus
	}
}
