package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/infrastructure/resilience"
)

func newTestServer(t *testing.T, answer string, capture *generateRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload generateRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if capture != nil {
			*capture = payload
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Response: answer})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSummarizerSendsFileNameAndText(t *testing.T) {
	var captured generateRequest
	server := newTestServer(t, "  A residential lease agreement.  ", &captured)

	s := NewSummarizer(New(Config{BaseURL: server.URL, Model: "gen"}))
	summary, err := s.Summarize(context.Background(), "Lease Agreement between...", "lease.pdf")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary != "A residential lease agreement." {
		t.Fatalf("unexpected summary %q", summary)
	}
	if captured.Model != "gen" || captured.Stream || captured.Format != "" {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if !strings.Contains(captured.Prompt, "lease.pdf") || !strings.Contains(captured.Prompt, "Lease Agreement between") {
		t.Fatalf("prompt misses inputs: %s", captured.Prompt)
	}
}

func TestSummarizerEmptyAnswerIsFailure(t *testing.T) {
	server := newTestServer(t, "   ", nil)
	_, err := NewSummarizer(New(Config{BaseURL: server.URL, Model: "gen"})).Summarize(context.Background(), "x", "x.pdf")
	if err == nil {
		t.Fatalf("expected error for empty summary")
	}
}

func TestTaggerParsesTypedResponse(t *testing.T) {
	var captured generateRequest
	server := newTestServer(t, "Sure!\n{\"tags\": [\" contract \", \"real-estate\"]}", &captured)

	tags, err := NewTagger(New(Config{BaseURL: server.URL, Model: "gen"})).Tags(context.Background(), "Lease", "lease.pdf")
	if err != nil {
		t.Fatalf("Tags() error = %v", err)
	}
	if len(tags) != 2 || tags[0] != "contract" || tags[1] != "real-estate" {
		t.Fatalf("unexpected tags %v", tags)
	}
	if captured.Format != "json" {
		t.Fatalf("expected json format, got %q", captured.Format)
	}
}

func TestTaggerRejectsMalformedResponses(t *testing.T) {
	cases := map[string]string{
		"not json":      "contract, real-estate",
		"wrong type":    `{"tags": "contract"}`,
		"missing key":   `{"labels": ["contract"]}`,
		"empty element": `{"tags": ["contract", " "]}`,
		"non string":    `{"tags": [1, 2]}`,
	}
	for name, answer := range cases {
		t.Run(name, func(t *testing.T) {
			server := newTestServer(t, answer, nil)
			_, err := NewTagger(New(Config{BaseURL: server.URL, Model: "gen"})).Tags(context.Background(), "x", "x.pdf")
			if err == nil {
				t.Fatalf("expected error for %q", answer)
			}
		})
	}
}

func TestCommandInterpreterValidatesAction(t *testing.T) {
	server := newTestServer(t, `{"action":"organize","description":"Group files by year","parameters":{"by":"year"}}`, nil)
	result, err := NewCommandInterpreter(New(Config{BaseURL: server.URL, Model: "gen"})).InterpretCommand(context.Background(), "organize by year")
	if err != nil {
		t.Fatalf("InterpretCommand() error = %v", err)
	}
	if result.Action != domain.ActionOrganize || result.Parameters["by"] != "year" {
		t.Fatalf("unexpected result %+v", result)
	}

	bad := newTestServer(t, `{"action":"delete_all","description":"x"}`, nil)
	if _, err := NewCommandInterpreter(New(Config{BaseURL: bad.URL, Model: "gen"})).InterpretCommand(context.Background(), "delete"); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestFolderPlannerParsesPlan(t *testing.T) {
	server := newTestServer(t, `{"folders":[{"key":"fin","name":"Finance"},{"key":"inv","name":"Invoices","parentKey":"fin"}]}`, nil)
	plan, err := NewFolderPlanner(New(Config{BaseURL: server.URL, Model: "gen"})).PlanFolders(context.Background(), domain.OnboardingProfile{Industry: "Retail"})
	if err != nil {
		t.Fatalf("PlanFolders() error = %v", err)
	}
	if len(plan) != 2 || plan[1].ParentKey != "fin" {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestVisionOCRSendsBase64Image(t *testing.T) {
	var captured generateRequest
	server := newTestServer(t, "INVOICE #42", &captured)

	text, err := NewVisionOCR(New(Config{BaseURL: server.URL, Model: "gen", VisionModel: "llava"})).ReadImage(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	if text != "INVOICE #42" {
		t.Fatalf("unexpected text %q", text)
	}
	if captured.Model != "llava" || len(captured.Images) != 1 {
		t.Fatalf("unexpected request %+v", captured)
	}
	if captured.Images[0] != base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
		t.Fatalf("image not base64 encoded")
	}
}

func TestStatusErrorCarriesBodyAndIsTemporary(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	_, err := NewSummarizer(New(Config{BaseURL: server.URL, Model: "gen", Executor: exec})).Summarize(context.Background(), "x", "x.pdf")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}
