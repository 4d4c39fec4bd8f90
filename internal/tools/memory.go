package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/emergentdev/emergent/internal/state"
)

// updateMemoryTool writes one of the four memory documents.
type updateMemoryTool struct {
	store *state.Store
}

func (t *updateMemoryTool) Name() string { return "update_memory" }

func (t *updateMemoryTool) Description() string {
	return "Update one of the memory documents (goals, progress, decisions, blockers)."
}

func (t *updateMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_type": map[string]any{
				"type":        "string",
				"enum":        []string{"goals", "progress", "decisions", "blockers"},
				"description": "Which memory document to update",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to store",
			},
			"mode": map[string]any{
				"type":        "string",
				"enum":        []string{"replace", "append"},
				"description": "Replace the whole document or append to it (default replace)",
			},
		},
		"required": []string{"file_type", "content"},
	}
}

func (t *updateMemoryTool) Execute(ctx context.Context, args map[string]any) Result {
	fileType, okType := stringArg(args, "file_type")
	if !okType {
		return failure("update_memory requires a 'file_type' argument")
	}
	content, okContent := args["content"].(string)
	if !okContent {
		return failure("update_memory requires a 'content' argument")
	}
	kind := state.MemoryKind(fileType)
	if !kind.Valid() {
		return failure(fmt.Sprintf("Unknown memory document: %s", fileType),
			"Use one of goals, progress, decisions, blockers")
	}

	mode, _ := stringArg(args, "mode")
	var err error
	if mode == "append" {
		err = t.store.AppendMemory(kind, content)
	} else {
		err = t.store.WriteMemory(kind, content)
	}
	if err != nil {
		return failure(fmt.Sprintf("Failed to update %s memory: %v", fileType, err))
	}
	return ok(fmt.Sprintf("Updated %s memory", fileType), map[string]any{"file_type": fileType},
		"Continue with the next task")
}

// completeGoalTool signals that the goal is done. The action loop
// treats a call to this tool as the completion signal.
type completeGoalTool struct{}

// CompleteGoalName is the tool the engine calls to end the run.
const CompleteGoalName = "complete_goal"

func (t *completeGoalTool) Name() string { return CompleteGoalName }

func (t *completeGoalTool) Description() string {
	return "Mark the current goal as complete and stop the agent."
}

func (t *completeGoalTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "Summary of what was accomplished",
			},
		},
		"required": []string{"summary"},
	}
}

func (t *completeGoalTool) Execute(ctx context.Context, args map[string]any) Result {
	summary, okArg := stringArg(args, "summary")
	if !okArg {
		return failure("complete_goal requires a 'summary' argument")
	}
	return ok(summary, map[string]any{})
}

// NewBuiltinRegistry registers the full built-in tool set for a
// workspace and validates it against the manifest.
func NewBuiltinRegistry(workDir string, store *state.Store) (*Registry, *Manifest, error) {
	projectDir := filepath.Join(workDir, "project")

	r := NewRegistry()
	r.Register(&searchFilesTool{projectDir: projectDir})
	r.Register(&readFileTool{projectDir: projectDir})
	r.Register(&writeFileTool{projectDir: projectDir})
	r.Register(&listFilesTool{projectDir: projectDir})
	r.Register(&runCommandTool{projectDir: projectDir})
	r.Register(&projectStructureTool{projectDir: projectDir})
	r.Register(&updateMemoryTool{store: store})
	r.Register(&completeGoalTool{})

	manifest, err := LoadManifest()
	if err != nil {
		return nil, nil, err
	}
	if err := manifest.Validate(r); err != nil {
		return nil, nil, err
	}
	return r, manifest, nil
}
