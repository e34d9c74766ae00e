package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the pipeline over the Model Context Protocol.
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
}

// NewMCPServer creates an MCP server wrapping the application.
func NewMCPServer(app *App) *MCPServer {
	mcpServer := server.NewMCPServer(
		"topical-server",
		Version,
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		app:       app,
		mcpServer: mcpServer,
	}
	s.registerTools()
	return s
}

func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("analyze_video",
		mcp.WithDescription("Run the full pipeline (acquire transcript, transcribe if needed, segment into topics, summarize) for a YouTube video. Resumes from recorded state: already completed phases are skipped. May incur OpenAI API costs."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or 11-character video ID"),
			mcp.Required(),
		),
		mcp.WithBoolean("retry_failed",
			mcp.Description("Retry phases that failed in a previous run"),
		),
	), s.handleAnalyzeVideo)

	s.mcpServer.AddTool(mcp.NewTool("get_segments",
		mcp.WithDescription("Return the topic segments of an already analyzed video as JSON. Fails if the analyze phase has not completed for the item - use analyze_video first."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or 11-character video ID"),
			mcp.Required(),
		),
	), s.handleGetSegments)

	s.mcpServer.AddTool(mcp.NewTool("pipeline_status",
		mcp.WithDescription("Inspect the pipeline state store: per-phase status for one item, or a summary of all known items when no url is given."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or 11-character video ID (optional)"),
		),
	), s.handlePipelineStatus)
}

func (s *MCPServer) handleAnalyzeVideo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	item, err := NewWorkItem(url)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("invalid video reference", err), nil
	}

	opts := RunOptions{RetryFailed: request.GetBool("retry_failed", false)}
	result := s.app.Run(ctx, item, opts)

	var buf strings.Builder
	fmt.Fprintf(&buf, "Item: %s\n", result.Item.ID)
	fmt.Fprintf(&buf, "Status: %s\n", result.Status)
	if len(result.Ran) > 0 {
		fmt.Fprintf(&buf, "Phases run: %s\n", strings.Join(result.Ran, ", "))
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(&buf, "Phases skipped (already complete): %s\n", strings.Join(result.Skipped, ", "))
	}
	if result.Err != nil {
		fmt.Fprintf(&buf, "Failed phase: %s\nError: %v\n", result.FailedPhase, result.Err)
		return mcp.NewToolResultError(buf.String()), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(buf.String())},
	}, nil
}

func (s *MCPServer) handleGetSegments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	item, err := NewWorkItem(url)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("invalid video reference", err), nil
	}

	state, err := s.app.State(ctx, item.ID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("reading pipeline state", err), nil
	}
	if state == nil || state.Phase(PhaseAnalyze).Status != PhaseComplete {
		return mcp.NewToolResultError("video has not been analyzed - run analyze_video first"), nil
	}

	segmentsPath, ok := state.Phase(PhaseAnalyze).Artifacts["segments"]
	if !ok {
		return mcp.NewToolResultError("analyze phase recorded no segments artifact"), nil
	}
	data, err := os.ReadFile(segmentsPath)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("reading segments", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
	}, nil
}

func (s *MCPServer) handlePipelineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := request.GetString("url", "")

	if url == "" {
		states, err := s.app.States(ctx)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("listing pipeline state", err), nil
		}
		var buf strings.Builder
		fmt.Fprintf(&buf, "%d known items\n\n", len(states))
		for _, state := range states {
			buf.WriteString(formatStateSummary(state))
			buf.WriteString("\n")
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(buf.String())},
		}, nil
	}

	item, err := NewWorkItem(url)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("invalid video reference", err), nil
	}
	state, err := s.app.State(ctx, item.ID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("reading pipeline state", err), nil
	}
	if state == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no pipeline state for %s", item.ID)), nil
	}

	detail, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return mcp.NewToolResultErrorFromErr("encoding state", err), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(detail))},
	}, nil
}

func formatStateSummary(state *PipelineState) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s (updated %s)\n", state.ID, state.UpdatedAt.Format("2006-01-02 15:04:05"))
	for _, phase := range PhaseOrder {
		rec := state.Phase(phase)
		fmt.Fprintf(&buf, "  %-10s %s", phase, rec.Status)
		if rec.Error != "" {
			fmt.Fprintf(&buf, " (%s)", rec.Error)
		}
		buf.WriteString("\n")
	}
	if state.LastError != "" {
		fmt.Fprintf(&buf, "  last error: %s\n", state.LastError)
	}
	return buf.String()
}

// Start serves MCP over the chosen transport, stdio by default.
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return httpServer.Start(addr)
	}
	return server.ServeStdio(s.mcpServer)
}
