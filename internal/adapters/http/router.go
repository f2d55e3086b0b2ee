package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/docsort/internal/config"
	"github.com/kirillkom/docsort/internal/core/ports"
	"github.com/kirillkom/docsort/internal/observability/metrics"
)

const serviceName = "api"

// Services are the inbound ports the HTTP surface drives.
type Services struct {
	Uploader   ports.FileUploader
	Files      ports.FileService
	Folders    ports.FolderService
	Commands   ports.CommandService
	Onboarding ports.OnboardingService
	Users      ports.UserService
}

// Options carries optional collaborators; nil fields switch the matching feature off.
type Options struct {
	Metrics *metrics.HTTPServerMetrics
	MCP     http.Handler
}

type Router struct {
	uploader   ports.FileUploader
	files      ports.FileService
	folders    ports.FolderService
	commands   ports.CommandService
	onboarding ports.OnboardingService
	users      ports.UserService

	metrics  *metrics.HTTPServerMetrics
	mcp      http.Handler
	validate *validator.Validate
	contract *contract

	maxUploadBytes     int64
	commandHistorySize int
	rateLimitRPS       float64
	rateLimitBurst     int
	maxInFlight        int
	backpressureWait   time.Duration
}

func NewRouter(cfg config.Config, services Services, opts Options) *Router {
	return &Router{
		uploader:           services.Uploader,
		files:              services.Files,
		folders:            services.Folders,
		commands:           services.Commands,
		onboarding:         services.Onboarding,
		users:              services.Users,
		metrics:            opts.Metrics,
		mcp:                opts.MCP,
		validate:           newValidator(),
		contract:           mustLoadContract(),
		maxUploadBytes:     cfg.MaxUploadBytes(),
		commandHistorySize: cfg.CommandHistorySize,
		rateLimitRPS:       cfg.APIRateLimitRPS,
		rateLimitBurst:     cfg.APIRateLimitBurst,
		maxInFlight:        cfg.APIMaxInFlight,
		backpressureWait:   cfg.APIBackpressureWait,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/files/upload", rt.uploadFiles)
	api.HandleFunc("GET /api/files", rt.listFiles)
	api.HandleFunc("GET /api/files/{id}", rt.getFile)
	api.HandleFunc("PUT /api/files/{id}", rt.updateFile)
	api.HandleFunc("DELETE /api/files/{id}", rt.deleteFile)
	api.HandleFunc("POST /api/files/{id}/reprocess", rt.reprocessFile)
	api.HandleFunc("GET /api/folders", rt.listFolders)
	api.HandleFunc("POST /api/folders", rt.createFolder)
	api.HandleFunc("PUT /api/folders/{id}", rt.updateFolder)
	api.HandleFunc("DELETE /api/folders/{id}", rt.deleteFolder)
	api.HandleFunc("POST /api/ai/command", rt.submitCommand)
	api.HandleFunc("GET /api/ai/commands", rt.listCommands)
	api.HandleFunc("GET /api/ai/commands/{id}", rt.getCommand)
	api.HandleFunc("POST /api/onboarding", rt.onboard)
	api.HandleFunc("GET /api/me", rt.me)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	root.HandleFunc("GET /openapi.yaml", rt.openAPIYAML)
	root.HandleFunc("GET /openapi.json", rt.openAPIJSON)
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
	}
	root.Handle("/api/", rt.guard(api))
	if rt.mcp != nil {
		root.Handle("/mcp", rt.guard(rt.mcp))
	}

	var handler http.Handler = accessLogMiddleware(root)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return handler
}

// guard puts traffic control and identity in front of user-facing endpoints.
func (rt *Router) guard(next http.Handler) http.Handler {
	handler := rt.identityMiddleware(next)
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureWait, rt.recordRejected)
	return rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.recordRejected)
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
