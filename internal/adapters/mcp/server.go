package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

const (
	serverName    = "docsort"
	serverVersion = "1.0.0"
	userIDHeader  = "X-User-Id"
)

type userIDKey struct{}

// Server exposes read access to files and folders and command submission as MCP tools.
type Server struct {
	handler  http.Handler
	files    ports.FileService
	folders  ports.FolderService
	commands ports.CommandService
}

func NewServer(files ports.FileService, folders ports.FolderService, commands ports.CommandService) *Server {
	s := &Server{
		files:    files,
		folders:  folders,
		commands: commands,
	}

	mcpServer := srv.NewMCPServer(
		serverName,
		serverVersion,
		srv.WithToolCapabilities(true),
		srv.WithInstructions("Browse the caller's documents and folders, and submit natural-language file commands."),
		srv.WithRecovery(),
		srv.WithHooks(newHooks()),
	)
	s.register(mcpServer)

	s.handler = srv.NewStreamableHTTPServer(
		mcpServer,
		srv.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return context.WithValue(ctx, userIDKey{}, strings.TrimSpace(r.Header.Get(userIDHeader)))
		}),
	)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) register(mcpServer *srv.MCPServer) {
	mcpServer.AddTool(mcp.NewTool(
		"list_files",
		mcp.WithDescription("List the caller's files, newest first, with processing status, summary and tags."),
		mcp.WithString("folder_id", mcp.Description(`Folder id, or "root" for unfiled files. Omit for all files.`)),
		mcp.WithString("status", mcp.Description("Filter by processing status."),
			mcp.Enum(string(domain.StatusPending), string(domain.StatusProcessing), string(domain.StatusCompleted), string(domain.StatusFailed))),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListFiles)

	mcpServer.AddTool(mcp.NewTool(
		"get_file",
		mcp.WithDescription("Get one file including its extracted text."),
		mcp.WithString("id", mcp.Required(), mcp.Description("File id.")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleGetFile)

	mcpServer.AddTool(mcp.NewTool(
		"list_folders",
		mcp.WithDescription("List the caller's folders ordered by path."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListFolders)

	mcpServer.AddTool(mcp.NewTool(
		"submit_command",
		mcp.WithDescription("Submit a natural-language file command for classification. Nothing is executed; poll the returned command for its result."),
		mcp.WithString("command", mcp.Required(), mcp.Description("Free-text command, e.g. \"move all invoices to Finance\".")),
	), s.handleSubmitCommand)
}

func (s *Server) handleListFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, failure := requireUser(ctx)
	if failure != nil {
		return failure, nil
	}

	filter := domain.FileFilter{Status: domain.ProcessingStatus(strings.TrimSpace(req.GetString("status", "")))}
	switch folderID := strings.TrimSpace(req.GetString("folder_id", "")); folderID {
	case "":
	case "root":
		filter.RootOnly = true
	default:
		filter.FolderID = folderID
	}

	files, err := s.files.List(ctx, userID, filter)
	if err != nil {
		return toolError("list_files", err), nil
	}
	return jsonResult(files)
}

func (s *Server) handleGetFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, failure := requireUser(ctx)
	if failure != nil {
		return failure, nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	file, err := s.files.Get(ctx, userID, strings.TrimSpace(id))
	if err != nil {
		return toolError("get_file", err), nil
	}
	return jsonResult(file)
}

func (s *Server) handleListFolders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, failure := requireUser(ctx)
	if failure != nil {
		return failure, nil
	}

	folders, err := s.folders.List(ctx, userID)
	if err != nil {
		return toolError("list_folders", err), nil
	}
	return jsonResult(folders)
}

func (s *Server) handleSubmitCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, failure := requireUser(ctx)
	if failure != nil {
		return failure, nil
	}
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cmd, err := s.commands.Submit(ctx, userID, command)
	if err != nil {
		return toolError("submit_command", err), nil
	}
	return jsonResult(cmd)
}

func requireUser(ctx context.Context) (string, *mcp.CallToolResult) {
	userID, _ := ctx.Value(userIDKey{}).(string)
	if userID == "" {
		return "", mcp.NewToolResultError("missing " + userIDHeader + " header")
	}
	return userID, nil
}

// toolError reports caller mistakes verbatim and hides internal failures.
func toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrNotFound),
		domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrConflict),
		domain.IsKind(err, domain.ErrQueueFull):
		return mcp.NewToolResultError(err.Error())
	}
	slog.Error("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(tool + " failed")
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError("encode result"), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func newHooks() *srv.Hooks {
	hooks := &srv.Hooks{}
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, _ any, err error) {
		slog.Warn("mcp_request_failed", "rpc_id", id, "method", string(method), "error", err)
	})
	hooks.AddOnRegisterSession(func(_ context.Context, session srv.ClientSession) {
		slog.Info("mcp_session_registered", "session_id", session.SessionID())
	})
	hooks.AddOnUnregisterSession(func(_ context.Context, session srv.ClientSession) {
		slog.Info("mcp_session_unregistered", "session_id", session.SessionID())
	})
	return hooks
}
