package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/docsort/internal/core/domain"
)

const maxJSONBodyBytes = 1 << 20

type updateFileRequest struct {
	Name             *string         `json:"name" validate:"omitempty,min=1,max=255"`
	FolderID         nullableString  `json:"folderId"`
	Tags             *[]string       `json:"tags" validate:"omitempty,max=50,dive,max=64"`
	OCRText          *string         `json:"ocrText"`
	AISummary        *string         `json:"aiSummary"`
	Metadata         *map[string]any `json:"metadata"`
	ProcessingStatus *string         `json:"processingStatus" validate:"omitempty,oneof=pending processing completed failed"`
}

func (req updateFileRequest) patch() domain.FilePatch {
	patch := domain.FilePatch{
		Name:      req.Name,
		Tags:      req.Tags,
		OCRText:   req.OCRText,
		AISummary: req.AISummary,
		Metadata:  req.Metadata,
	}
	if req.FolderID.Set {
		folderID := req.FolderID.Value
		patch.FolderID = &folderID
	}
	if req.ProcessingStatus != nil {
		status := domain.ProcessingStatus(*req.ProcessingStatus)
		patch.ProcessingStatus = &status
	}
	return patch
}

type processingOptionsRequest struct {
	ProcessOCR      *bool `json:"processOcr"`
	GenerateSummary *bool `json:"generateSummary"`
	AutoTag         *bool `json:"autoTag"`
}

func (req processingOptionsRequest) options() domain.ProcessingOptions {
	options := domain.DefaultProcessingOptions()
	if req.ProcessOCR != nil {
		options.ExtractText = *req.ProcessOCR
	}
	if req.GenerateSummary != nil {
		options.GenerateSummary = *req.GenerateSummary
	}
	if req.AutoTag != nil {
		options.AutoTag = *req.AutoTag
	}
	return options
}

type createFolderRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	ParentID *string `json:"parentId" validate:"omitempty,min=1,max=64"`
}

type updateFolderRequest struct {
	Name     *string        `json:"name" validate:"omitempty,min=1,max=255"`
	ParentID nullableString `json:"parentId"`
}

func (req updateFolderRequest) update() domain.FolderUpdate {
	return domain.FolderUpdate{
		Name:      req.Name,
		SetParent: req.ParentID.Set,
		ParentID:  req.ParentID.Value,
	}
}

type commandRequest struct {
	Command string `json:"command" validate:"required,max=2000"`
}

type onboardingRequest struct {
	Industry    string `json:"industry" validate:"required,max=120"`
	TeamSize    string `json:"teamSize" validate:"max=60"`
	Description string `json:"description" validate:"max=2000"`
}

func (req onboardingRequest) profile() domain.OnboardingProfile {
	return domain.OnboardingProfile{
		Industry:    strings.TrimSpace(req.Industry),
		TeamSize:    strings.TrimSpace(req.TeamSize),
		Description: strings.TrimSpace(req.Description),
	}
}

// nullableString tells an absent key from an explicit null; null clears the reference.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// decodeJSON reads one JSON object into dst and validates it. An empty body is allowed when
// allowEmpty is set, leaving dst at its zero value.
func (rt *Router) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	if err := rt.validate.Struct(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate request", describeValidation(err))
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

// formBool parses the "true"/"false" option fields; anything unparsable keeps the default.
func formBool(value string, fallback bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return fallback
	}
	return n
}
