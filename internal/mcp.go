package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
	logger    zerolog.Logger
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app *App, version string, logger zerolog.Logger) *MCPServer {
	mcpServer := server.NewMCPServer(
		"chapterscribe",
		version,
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		app:       app,
		mcpServer: mcpServer,
		logger:    logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

func sourceOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("source",
			mcp.Description("Where the video is hosted: hls (master playlist URL) or hosted (numeric video id)"),
			mcp.Enum(string(SourceHLS), string(SourceHosted)),
			mcp.Required(),
		),
		mcp.WithString("locator",
			mcp.Description("HLS master playlist URL or hosted-platform video id"),
			mcp.Required(),
		),
	}
}

// registerTools registers all available MCP tools
func (s *MCPServer) registerTools() {
	transcribeOpts := []mcp.ToolOption{
		mcp.WithDescription("Download a lesson chapter video, transcribe its audio (PAID, billed per minute) and write a WebVTT caption track. Returns the caption text. Existing captions are reused unless force is true. Always ask the user before forcing a re-transcription."),
		mcp.WithNumber("lesson_id", mcp.Description("Lesson id"), mcp.Required()),
		mcp.WithNumber("chapter_id", mcp.Description("Chapter id"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Chapter title, used for file names")),
		mcp.WithBoolean("force", mcp.Description("Transcribe again even if captions exist")),
	}
	s.mcpServer.AddTool(mcp.NewTool("transcribe_chapter", append(transcribeOpts, sourceOptions()...)...), s.handleTranscribe)

	inspectOpts := []mcp.ToolOption{
		mcp.WithDescription("List the renditions a video source offers and which one would be downloaded (FREE, nothing is downloaded)."),
	}
	s.mcpServer.AddTool(mcp.NewTool("inspect_source", append(inspectOpts, sourceOptions()...)...), s.handleInspect)

	s.mcpServer.AddTool(mcp.NewTool("chapter_cost",
		mcp.WithDescription("Total transcription cost recorded for one chapter, in USD."),
		mcp.WithNumber("chapter_id", mcp.Description("Chapter id"), mcp.Required()),
	), s.handleChapterCost)

	s.mcpServer.AddTool(mcp.NewTool("total_cost",
		mcp.WithDescription("Total transcription cost recorded across all chapters, in USD."),
	), s.handleTotalCost)
}

func sourceFromRequest(request mcp.CallToolRequest) (SourceRef, error) {
	kind, err := request.RequireString("source")
	if err != nil {
		return nil, err
	}
	locator, err := request.RequireString("locator")
	if err != nil {
		return nil, err
	}
	return ParseSource(kind, locator)
}

// handleTranscribe implements the transcribe_chapter tool
func (s *MCPServer) handleTranscribe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lesson, err := requireID(request, "lesson_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chapter, err := requireID(request, "chapter_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := sourceFromRequest(request)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("invalid source", err), nil
	}

	ref := ChapterRef{
		LessonID:  lesson,
		ChapterID: chapter,
		Title:     request.GetString("title", ""),
		Source:    source,
	}
	s.logger.Info().Str("chapter", ref.String()).Msg("transcribe_chapter called")

	result, err := s.app.RunChapter(ctx, ref, RunOptions{Force: request.GetBool("force", false)})
	if err != nil {
		s.logger.Error().Err(err).Msg("transcribe_chapter failed")
		return mcp.NewToolResultErrorFromErr("transcription pipeline failed", err), nil
	}

	captions, err := s.app.ReadCaptions(ref)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("captions were written but could not be read", err), nil
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "Captions: %s\n", result.CaptionPath)
	if result.CaptionURL != "" {
		fmt.Fprintf(&buf, "Published: %s\n", result.CaptionURL)
	}
	if result.Cached {
		buf.WriteString("Cached: true (no new charge)\n")
	} else if t := result.Transcription; t != nil {
		fmt.Fprintf(&buf, "Duration: %.1f minutes\n", t.DurationSeconds/60)
		fmt.Fprintf(&buf, "Cost: $%.4f\n", t.Cost)
	}
	buf.WriteString("\n")
	buf.WriteString(captions)

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(buf.String())},
	}, nil
}

// handleInspect implements the inspect_source tool
func (s *MCPServer) handleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := sourceFromRequest(request)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("invalid source", err), nil
	}

	info, err := s.app.Inspect(ctx, source)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("inspecting source failed", err), nil
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return mcp.NewToolResultErrorFromErr("encoding source info", err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleChapterCost implements the chapter_cost tool
func (s *MCPServer) handleChapterCost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chapter, err := requireID(request, "chapter_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ledger := s.app.Ledger()
	if ledger == nil {
		return mcp.NewToolResultError("cost ledger is not available"), nil
	}

	cost, err := ledger.ChapterCost(ctx, chapter)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("reading cost ledger", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Chapter %d: $%.4f", chapter, cost)), nil
}

// requireID reads a whole-number argument. JSON numbers arrive as float64,
// so 12.5 is rejected instead of truncated to 12
func requireID(request mcp.CallToolRequest, name string) (int64, error) {
	v, err := request.RequireFloat(name)
	if err != nil {
		return 0, fmt.Errorf("%s parameter is required and must be a number", name)
	}
	if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, fmt.Errorf("%s must be an integer, got %v", name, v)
	}
	return int64(v), nil
}

// handleTotalCost implements the total_cost tool
func (s *MCPServer) handleTotalCost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ledger := s.app.Ledger()
	if ledger == nil {
		return mcp.NewToolResultError("cost ledger is not available"), nil
	}

	cost, err := ledger.TotalCost(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("reading cost ledger", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Total: $%.4f", cost)), nil
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Info().Str("addr", addr).Msg("serving MCP over HTTP")
		return httpServer.Start(addr)
	}

	s.logger.Info().Msg("serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}
