package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekazakov/lingoscene/internal/imagegen"
	"github.com/ekazakov/lingoscene/internal/scene"
	"github.com/ekazakov/lingoscene/internal/storage"
)

// mcpInstallID identifies attempts submitted through the MCP surface so they
// share one rate-limit bucket.
const mcpInstallID = "mcp"

// MCPDeps holds dependencies for the MCP server. It reuses the HTTP Deps so
// both surfaces run the same orchestration.
type MCPDeps struct {
	Deps
	Scheduler *scene.Scheduler
}

// NewMCPServer creates an MCP server exposing the practice loop as tools:
// fetching scenes, submitting descriptions, and polling attempts.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"lingoscene",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Scene description practice: fetch a scene, describe it in English, get feedback and a generated image."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_scene",
			mcp.WithDescription("Fetch a practice scene by id, or the initial scene when no id is given."),
			mcp.WithString("sceneId", mcp.Description("Scene id (e.g. scene_003); omit for the starting scene")),
		),
		mcpGetScene(deps),
	)

	s.AddTool(
		mcp.NewTool("next_scene",
			mcp.WithDescription("Mark the current scene as seen and pick the next unseen one."),
			mcp.WithString("currentSceneId", mcp.Description("Scene id currently shown; omitted on cold start")),
		),
		mcpNextScene(deps),
	)

	s.AddTool(
		mcp.NewTool("submit_description",
			mcp.WithDescription("Submit a scene description for evaluation. Returns feedback immediately; the image is generated asynchronously (poll with get_attempt)."),
			mcp.WithString("sceneId", mcp.Description("Scene being described"), mcp.Required()),
			mcp.WithString("text", mcp.Description("The description, at least 3 words"), mcp.Required()),
		),
		mcpSubmitDescription(deps),
	)

	s.AddTool(
		mcp.NewTool("get_attempt",
			mcp.WithDescription("Poll an attempt for its image URL and status."),
			mcp.WithString("attemptId", mcp.Description("Attempt id returned by submit_description"), mcp.Required()),
		),
		mcpGetAttempt(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"scenes://catalog",
			"Scene Catalog",
			mcp.WithResourceDescription("The full practice scene catalog as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCatalog(),
	)

	return s
}

func mcpGetScene(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("sceneId", "")

		var sc scene.Scene
		if id == "" {
			sc = deps.Scheduler.InitialScene()
		} else {
			var ok bool
			sc, ok = scene.ByID(id)
			if !ok {
				return mcpError(fmt.Sprintf("unknown scene id: %s", id)), nil
			}
		}

		b, err := json.Marshal(sc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal scene: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpNextScene(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		currentID := req.GetString("currentSceneId", "")
		if currentID != "" {
			deps.Scheduler.MarkSeen(currentID)
		}

		sc := deps.Scheduler.NextScene(currentID)
		b, err := json.Marshal(sc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal scene: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSubmitDescription(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sceneID, err := req.RequireString("sceneId")
		if err != nil {
			return mcpError("sceneId is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		if WordCount(text) < MinWords {
			return mcpError("Description must have at least 3 words"), nil
		}

		if !deps.Limiter.Allow(mcpInstallID) {
			return mcpError("Rate limit exceeded"), nil
		}

		attemptID := uuid.New().String()
		if err := deps.Store.InsertAttempt(storage.Attempt{
			ID:        attemptID,
			InstallID: mcpInstallID,
			SceneID:   sceneID,
			InputText: text,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return mcpError(fmt.Sprintf("failed to save attempt: %v", err)), nil
		}

		evalStart := time.Now()
		result, err := deps.Evaluator.Evaluate(ctx, sceneID, text)
		if err != nil {
			if markErr := deps.Store.MarkAttemptError(attemptID); markErr != nil {
				return mcpError(fmt.Sprintf("evaluation failed: %v (and marking attempt failed: %v)", err, markErr)), nil
			}
			return mcpError(fmt.Sprintf("evaluation failed: %v", err)), nil
		}

		if err := deps.Store.SetEvaluation(attemptID, storage.Evaluation{
			MinimalFix:      result.MinimalFix,
			MicroReason:     result.MicroReason,
			BestDescription: result.BestDescription,
			Encouragement:   result.Encouragement,
		}, time.Since(evalStart)); err != nil {
			return mcpError(fmt.Sprintf("failed to persist evaluation: %v", err)), nil
		}

		payload, err := json.Marshal(imagegen.JobPayload{AttemptID: attemptID, Text: text})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal job payload: %v", err)), nil
		}
		if err := deps.Store.EnqueueJob(storage.Job{
			ID:          uuid.New().String(),
			Type:        storage.JobTypeGenerateImage,
			PayloadJSON: string(payload),
			MaxAttempts: 1,
		}); err != nil {
			return mcpError(fmt.Sprintf("evaluation saved but failed to queue image job: %v", err)), nil
		}

		b, err := json.Marshal(SubmitResponse{
			MinimalFix:      result.MinimalFix,
			MicroReason:     result.MicroReason,
			BestDescription: result.BestDescription,
			Encouragement:   result.Encouragement,
			ImageURL:        nil,
			AttemptID:       attemptID,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetAttempt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		attemptID, err := req.RequireString("attemptId")
		if err != nil {
			return mcpError("attemptId is required"), nil
		}

		imageURL, status, err := deps.Store.AttemptStatus(attemptID)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError("Attempt not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load attempt: %v", err)), nil
		}

		resp := AttemptStatusResponse{Status: status}
		if imageURL != "" {
			resp.ImageURL = &imageURL
		}
		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceCatalog() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(scene.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
