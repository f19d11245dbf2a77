package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekazakov/lingoscene/internal/scene"
	"github.com/ekazakov/lingoscene/internal/storage"
)

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	return MCPDeps{
		Deps:      newTestDeps(t),
		Scheduler: scene.NewScheduler(scene.Catalog, &scene.MemorySeenStore{}),
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_GetScene_Initial(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpGetScene(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_scene", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var sc scene.Scene
	if err := json.Unmarshal([]byte(toolText(t, result)), &sc); err != nil {
		t.Fatalf("parsing scene: %v", err)
	}
	if sc.ID != scene.Catalog[0].ID {
		t.Fatalf("expected the catalog's first scene on cold start, got %s", sc.ID)
	}
}

func TestMCPTool_GetScene_UnknownID(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpGetScene(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_scene", map[string]interface{}{
		"sceneId": "scene_999",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown scene id")
	}
}

func TestMCPTool_NextScene_AvoidsCurrent(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpNextScene(deps)

	current := scene.Catalog[0].ID
	for i := 0; i < 20; i++ {
		result, err := handler(context.Background(), makeCallToolRequest("next_scene", map[string]interface{}{
			"currentSceneId": current,
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected error result: %s", toolText(t, result))
		}

		var sc scene.Scene
		if err := json.Unmarshal([]byte(toolText(t, result)), &sc); err != nil {
			t.Fatalf("parsing scene: %v", err)
		}
		if sc.ID == current {
			t.Fatalf("iteration %d: next scene repeated the current one (%s)", i, sc.ID)
		}
		current = sc.ID
	}
}

func TestMCPTool_SubmitDescription(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSubmitDescription(deps)

	result, err := handler(context.Background(), makeCallToolRequest("submit_description", map[string]interface{}{
		"sceneId": "scene_001",
		"text":    "a woman walks in the park",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var resp SubmitResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.AttemptID == "" {
		t.Fatal("expected an attempt id")
	}
	if resp.ImageURL != nil {
		t.Fatal("imageUrl must be null in the submit response")
	}

	// The tool queues the same single-shot image job the HTTP path does.
	job, err := deps.Store.ClaimNextJob([]string{storage.JobTypeGenerateImage})
	if err != nil {
		t.Fatalf("claiming job: %v", err)
	}
	if job == nil {
		t.Fatal("expected an image job to be enqueued")
	}
}

func TestMCPTool_SubmitDescription_TooFewWords(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSubmitDescription(deps)

	result, err := handler(context.Background(), makeCallToolRequest("submit_description", map[string]interface{}{
		"sceneId": "scene_001",
		"text":    "two words",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for a two-word description")
	}
	if msg := toolText(t, result); msg != "Description must have at least 3 words" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestMCPTool_GetAttempt(t *testing.T) {
	deps := newTestMCPDeps(t)

	submitResult, err := mcpSubmitDescription(deps)(context.Background(), makeCallToolRequest("submit_description", map[string]interface{}{
		"sceneId": "scene_001",
		"text":    "a woman walks in the park",
	}))
	if err != nil {
		t.Fatalf("submitting: %v", err)
	}
	var submitted SubmitResponse
	if err := json.Unmarshal([]byte(toolText(t, submitResult)), &submitted); err != nil {
		t.Fatalf("parsing submit response: %v", err)
	}

	result, err := mcpGetAttempt(deps)(context.Background(), makeCallToolRequest("get_attempt", map[string]interface{}{
		"attemptId": submitted.AttemptID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var status AttemptStatusResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &status); err != nil {
		t.Fatalf("parsing status: %v", err)
	}
	if status.Status != storage.StatusPartial {
		t.Fatalf("expected partial, got %s", status.Status)
	}
}

func TestMCPTool_GetAttempt_NotFound(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpGetAttempt(deps)(context.Background(), makeCallToolRequest("get_attempt", map[string]interface{}{
		"attemptId": "missing-attempt-id",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for a missing attempt")
	}
}

func TestMCPResource_Catalog(t *testing.T) {
	handler := mcpResourceCatalog()

	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "scenes://catalog"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var catalog []scene.Scene
	if err := json.Unmarshal([]byte(tc.Text), &catalog); err != nil {
		t.Fatalf("parsing catalog: %v", err)
	}
	if len(catalog) != len(scene.Catalog) {
		t.Fatalf("expected %d scenes, got %d", len(scene.Catalog), len(catalog))
	}
}
