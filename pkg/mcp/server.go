package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/behaviors/internal/behavior"
	"github.com/rendis/behaviors/internal/expressions"
	"github.com/rendis/behaviors/internal/store"
	"github.com/rendis/behaviors/internal/templating"
)

// BehaviorServerDeps holds the dependencies for creating a BehaviorServer.
type BehaviorServerDeps struct {
	Engine    *behavior.Engine
	Resolver  *expressions.Resolver
	History   *store.TriggerLog // nil disables behaviors.history
	Templates *templating.Task  // nil disables output rendering
	Version   string
	Logger    *slog.Logger
}

// BehaviorServer wraps an MCP server with behavior tool handlers.
type BehaviorServer struct {
	engine    *behavior.Engine
	resolver  *expressions.Resolver
	history   *store.TriggerLog
	templates *templating.Task
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewBehaviorServer creates a new BehaviorServer with all 3 tools registered.
func NewBehaviorServer(deps BehaviorServerDeps) *BehaviorServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = expressions.NewResolver(nil)
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &BehaviorServer{
		engine:    deps.Engine,
		resolver:  resolver,
		history:   deps.History,
		templates: deps.Templates,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"behaviors",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Behaviors matches conversation steps against rule expressions. Use behaviors.evaluate to find the behaviors a step triggers, behaviors.resolve to inspect or test a single rule expression, and behaviors.history to read a conversation's trigger log."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *BehaviorServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *BehaviorServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 3 registered MCP tools as ServerTool entries.
func (s *BehaviorServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: evaluateTool(), Handler: s.handleEvaluate},
		{Tool: resolveTool(), Handler: s.handleResolve},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func evaluateTool() mcp.Tool {
	return mcp.NewTool("behaviors.evaluate",
		mcp.WithDescription("Evaluate a conversation step against the loaded behavior set"),
		mcp.WithObject("facts", mcp.Required(), mcp.Description("Facts of the step keyed by domain")),
		mcp.WithObject("memory", mcp.Description("Conversation memory document; domains missing from facts are looked up here by path")),
		mcp.WithObject("context", mcp.Description("Variables available to output templates")),
		mcp.WithString("conversation_id", mcp.Description("Conversation ID (enables the trigger log)")),
		mcp.WithString("step_id", mcp.Description("Step ID within the conversation")),
		mcp.WithBoolean("explain", mcp.Description("Include the failing leaves of behaviors that did not trigger")),
	)
}

func resolveTool() mcp.Tool {
	return mcp.NewTool("behaviors.resolve",
		mcp.WithDescription("Resolve a rule node into an expression and optionally match it against facts"),
		mcp.WithObject("node", mcp.Required(), mcp.Description("Rule node: {name, domain, children}")),
		mcp.WithObject("facts", mcp.Description("Facts keyed by domain to match the expression against")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("behaviors.history",
		mcp.WithDescription("Read the trigger log of a conversation"),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of most recent evaluations (default: 20)")),
	)
}
