package ollama

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const maxTags = 8

type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

func (s *Summarizer) Summarize(ctx context.Context, text, fileName string) (string, error) {
	summary, err := s.client.generateText(ctx, "summarize", buildSummaryPrompt(text, fileName))
	if err != nil {
		return "", err
	}
	if summary == "" {
		return "", errors.New("ollama summarize: empty response")
	}
	return summary, nil
}

type Tagger struct {
	client *Client
}

func NewTagger(client *Client) *Tagger {
	return &Tagger{client: client}
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

func (r *tagsResponse) validate() error {
	if r.Tags == nil {
		return errors.New("missing tags array")
	}
	clean := make([]string, 0, len(r.Tags))
	for i, tag := range r.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return fmt.Errorf("tag %d is empty", i)
		}
		clean = append(clean, tag)
	}
	if len(clean) > maxTags {
		clean = clean[:maxTags]
	}
	r.Tags = clean
	return nil
}

func (t *Tagger) Tags(ctx context.Context, text, fileName string) ([]string, error) {
	var resp tagsResponse
	if err := t.client.generateJSON(ctx, "tag", buildTagsPrompt(text, fileName), &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

// VisionOCR transcribes text from images with a multimodal model.
type VisionOCR struct {
	client *Client
}

func NewVisionOCR(client *Client) *VisionOCR {
	return &VisionOCR{client: client}
}

func (v *VisionOCR) ReadImage(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("ollama vision: empty image")
	}
	return v.client.generate(ctx, "vision", generateRequest{
		Model:   v.client.visionModel,
		Prompt:  visionPrompt,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
		Options: &generateOptions{Temperature: 0},
	})
}
