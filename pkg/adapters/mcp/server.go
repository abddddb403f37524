package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/detent"
	"github.com/aretw0/detent/internal/config"
	"github.com/aretw0/detent/internal/presentation/graph"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// StackURI is the resource exposing every mounted sheet.
const (
	StackURI        = "detent://stack"
	StackMermaidURI = "detent://stack/mermaid"
)

// SheetResponse is the structured result of every sheet tool.
type SheetResponse struct {
	Sheet *domain.Snapshot `json:"sheet" jsonschema_description:"The sheet after the command settled"`
}

// StackResponse is the structured result of stack-wide tools.
type StackResponse struct {
	Sheets  []*domain.Snapshot `json:"sheets" jsonschema_description:"Every mounted sheet in mount order"`
	Topmost string             `json:"topmost,omitempty" jsonschema_description:"ID of the most recently presented live sheet"`
}

// Server wraps the detent Engine and exposes it as an MCP Server.
type Server struct {
	engine    *detent.Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(engine *detent.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("detent-mcp", strings.TrimSpace(detent.Version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: mount_sheet
	s.mcpServer.AddTool(mcp.NewTool("mount_sheet",
		mcp.WithDescription("Mount a new sheet. It stays idle until presented."),
		mcp.WithString("name", mcp.Description("Unique name to address the sheet by")),
		mcp.WithString("detents", mcp.Description(`JSON array of detents, e.g. ["50%", "large", 300, "auto"] (default medium, large)`)),
		mcp.WithNumber("max_height", mcp.Description("Height available to the sheet in points (default 800)")),
		mcp.WithBoolean("dismissible", mcp.Description("Whether dragging below the lowest detent dismisses (default true)")),
		mcp.WithBoolean("draggable", mcp.Description("Whether the sheet accepts drag gestures (default true)")),
		mcp.WithOutputSchema[SheetResponse](),
	), mcp.NewStructuredToolHandler(s.handleMount))

	// TOOL: present_sheet
	s.mcpServer.AddTool(mcp.NewTool("present_sheet",
		mcp.WithDescription("Present a sheet at a detent index. Presenting while another sheet is showing stacks it on top."),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet ID or name")),
		mcp.WithNumber("index", mcp.Description("Detent index (default 0)")),
		mcp.WithBoolean("animated", mcp.Description("Animate the transition (default true)")),
		mcp.WithOutputSchema[SheetResponse](),
	), mcp.NewStructuredToolHandler(s.sheetTool("present", func(ctx context.Context, sh *detent.Sheet, args map[string]any) error {
		return sh.Present(ctx, intArg(args, "index"), boolArg(args, "animated", true))
	})))

	// TOOL: dismiss_sheet
	s.mcpServer.AddTool(mcp.NewTool("dismiss_sheet",
		mcp.WithDescription("Dismiss a sheet and every sheet stacked on it, most recent first."),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet ID or name")),
		mcp.WithBoolean("animated", mcp.Description("Animate the transition (default true)")),
		mcp.WithOutputSchema[SheetResponse](),
	), mcp.NewStructuredToolHandler(s.sheetTool("dismiss", func(ctx context.Context, sh *detent.Sheet, args map[string]any) error {
		return sh.Dismiss(ctx, boolArg(args, "animated", true))
	})))

	// TOOL: resize_sheet
	s.mcpServer.AddTool(mcp.NewTool("resize_sheet",
		mcp.WithDescription("Move a presented sheet to another detent."),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet ID or name")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Target detent index")),
		mcp.WithOutputSchema[SheetResponse](),
	), mcp.NewStructuredToolHandler(s.sheetTool("resize", func(ctx context.Context, sh *detent.Sheet, args map[string]any) error {
		return sh.Resize(ctx, intArg(args, "index"))
	})))

	// TOOL: dismiss_children
	s.mcpServer.AddTool(mcp.NewTool("dismiss_children",
		mcp.WithDescription("Dismiss every sheet stacked on the given one, keeping it presented."),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet ID or name")),
		mcp.WithBoolean("animated", mcp.Description("Animate the transitions (default true)")),
		mcp.WithOutputSchema[SheetResponse](),
	), mcp.NewStructuredToolHandler(s.sheetTool("dismiss_children", func(ctx context.Context, sh *detent.Sheet, args map[string]any) error {
		return sh.DismissChildren(ctx, boolArg(args, "animated", true))
	})))

	// TOOL: dismiss_all
	s.mcpServer.AddTool(mcp.NewTool("dismiss_all",
		mcp.WithDescription("Dismiss every presented sheet, most recently presented stack first."),
		mcp.WithBoolean("animated", mcp.Description("Animate the transitions (default true)")),
		mcp.WithOutputSchema[StackResponse](),
	), mcp.NewStructuredToolHandler(s.handleDismissAll))

	// TOOL: list_sheets
	s.mcpServer.AddTool(mcp.NewTool("list_sheets",
		mcp.WithDescription("List every mounted sheet with its state, detents and stack links."),
		mcp.WithOutputSchema[StackResponse](),
	), mcp.NewStructuredToolHandler(s.handleList))
}

func (s *Server) handleMount(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SheetResponse, error) {
	decl := make(map[string]any)
	for _, key := range []string{"name", "max_height", "dismissible", "draggable"} {
		if v, ok := args[key]; ok {
			decl[key] = v
		}
	}
	if raw, ok := args["detents"].(string); ok && raw != "" {
		var detents []any
		if err := json.Unmarshal([]byte(raw), &detents); err != nil {
			return SheetResponse{}, fmt.Errorf("detents must be a JSON array: %w", err)
		}
		decl["detents"] = detents
	}

	cfg, err := config.DecodeSheet(decl)
	if err != nil {
		return SheetResponse{}, err
	}
	sheet, err := s.engine.Mount(cfg)
	if err != nil {
		return SheetResponse{}, fmt.Errorf("mount failed: %w", err)
	}
	snap, err := sheet.Snapshot()
	if err != nil {
		return SheetResponse{}, err
	}
	return SheetResponse{Sheet: snap}, nil
}

func (s *Server) sheetTool(op string, run func(context.Context, *detent.Sheet, map[string]any) error) func(context.Context, mcp.CallToolRequest, map[string]any) (SheetResponse, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SheetResponse, error) {
		ref, _ := args["sheet"].(string)
		sheet, err := s.resolve(ref)
		if err != nil {
			return SheetResponse{}, err
		}
		if err := run(ctx, sheet, args); err != nil {
			s.logger.Debug("MCP: command rejected", "op", op, "sheet", ref, "error", err)
			return SheetResponse{}, fmt.Errorf("%s failed: %w", op, err)
		}
		snap, err := sheet.Snapshot()
		if err != nil {
			return SheetResponse{}, err
		}
		return SheetResponse{Sheet: snap}, nil
	}
}

func (s *Server) handleDismissAll(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StackResponse, error) {
	if err := s.engine.DismissAll(ctx, boolArg(args, "animated", true)); err != nil {
		return StackResponse{}, fmt.Errorf("dismiss_all failed: %w", err)
	}
	return s.stack(), nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StackResponse, error) {
	return s.stack(), nil
}

func (s *Server) stack() StackResponse {
	return StackResponse{Sheets: s.engine.List(), Topmost: s.engine.Topmost()}
}

// resolve accepts an ID or a name.
func (s *Server) resolve(ref string) (*detent.Sheet, error) {
	if ref == "" {
		return nil, fmt.Errorf("sheet is required")
	}
	sheet, err := s.engine.Sheet(ref)
	if errors.Is(err, domain.ErrNotFound) {
		sheet, err = s.engine.Lookup(ref)
	}
	return sheet, err
}

// JSON numbers arrive as float64.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func (s *Server) registerResources() {
	// EXPOSE: detent://stack
	s.mcpServer.AddResource(mcp.NewResource(StackURI, "Presentation Stack",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.stack())
		if err != nil {
			return nil, fmt.Errorf("failed to encode stack: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StackURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	// EXPOSE: detent://stack/mermaid
	s.mcpServer.AddResource(mcp.NewResource(StackMermaidURI, "Presentation Stack Chart",
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		chart := graph.GenerateMermaid(s.engine.List(), &graph.StackOverlay{Topmost: s.engine.Topmost()})
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StackMermaidURI,
				MIMEType: "text/vnd.mermaid",
				Text:     chart,
			},
		}, nil
	})
}
