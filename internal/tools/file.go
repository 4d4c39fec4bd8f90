package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// maxSearchMatches caps matches returned from one search.
	maxSearchMatches = 50

	// maxSearchFileSize skips files too large to scan usefully.
	maxSearchFileSize = 1 << 20
)

// resolvePath joins a tool-supplied relative path with the project
// directory, rejecting escapes outside it.
func resolvePath(projectDir, rel string) (string, error) {
	full := filepath.Join(projectDir, rel)
	if full != projectDir && !strings.HasPrefix(full, projectDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the project directory", rel)
	}
	return full, nil
}

// searchFilesTool searches project files for a text query.
type searchFilesTool struct {
	projectDir string
}

func (t *searchFilesTool) Name() string { return "search_files" }

func (t *searchFilesTool) Description() string {
	return "Search for text in project files. Returns matches with file paths and line numbers."
}

func (t *searchFilesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The text to search for",
			},
			"file_pattern": map[string]any{
				"type":        "string",
				"description": "Optional file name pattern (e.g. '*.go')",
			},
		},
		"required": []string{"query"},
	}
}

func (t *searchFilesTool) Execute(ctx context.Context, args map[string]any) Result {
	query, okArg := stringArg(args, "query")
	if !okArg {
		return failure("search_files requires a 'query' argument")
	}
	pattern, _ := stringArg(args, "file_pattern")

	type match struct {
		File    string `json:"file"`
		Line    int    `json:"line"`
		Content string `json:"content"`
	}
	var matches []match

	err := filepath.WalkDir(t.projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || len(matches) >= maxSearchMatches {
			return filepath.SkipAll
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == ".emergent" {
				return filepath.SkipDir
			}
			return nil
		}
		if pattern != "" {
			if matched, _ := filepath.Match(pattern, d.Name()); !matched {
				return nil
			}
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxSearchFileSize {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(t.projectDir, path)
		for i, line := range strings.Split(string(raw), "\n") {
			if strings.Contains(line, query) {
				matches = append(matches, match{File: rel, Line: i + 1, Content: strings.TrimSpace(line)})
				if len(matches) >= maxSearchMatches {
					break
				}
			}
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return failure("Search cancelled", "Try a more specific search")
	}

	if len(matches) == 0 {
		return ok(fmt.Sprintf("No matches found for %q", query),
			map[string]any{"matches": []match{}},
			"Try a different search term", "Check if files exist in the project directory")
	}

	out := make([]any, len(matches))
	for i, m := range matches {
		out[i] = map[string]any{"file": m.File, "line": m.Line, "content": m.Content}
	}
	return ok(fmt.Sprintf("Found %d matches for %q", len(matches), query),
		map[string]any{"matches": out},
		fmt.Sprintf("Read %s to see full context", matches[0].File))
}

// readFileTool reads a file with an optional line range.
type readFileTool struct {
	projectDir string
}

func (t *readFileTool) Name() string { return "read_file" }

func (t *readFileTool) Description() string {
	return "Read the contents of a file. Returns the file content and metadata."
}

func (t *readFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file relative to the project directory",
			},
			"start_line": map[string]any{
				"type":        "integer",
				"description": "Optional starting line number (1-based)",
			},
			"end_line": map[string]any{
				"type":        "integer",
				"description": "Optional ending line number (inclusive)",
			},
		},
		"required": []string{"file_path"},
	}
}

func (t *readFileTool) Execute(ctx context.Context, args map[string]any) Result {
	rel, okArg := stringArg(args, "file_path")
	if !okArg {
		return failure("read_file requires a 'file_path' argument")
	}
	full, err := resolvePath(t.projectDir, rel)
	if err != nil {
		return failure(err.Error())
	}

	raw, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(fmt.Sprintf("File not found: %s", rel),
				"Check file path spelling", "List directory contents")
		}
		return failure(fmt.Sprintf("Failed to read %s: %v", rel, err))
	}

	lines := strings.Split(string(raw), "\n")
	total := len(lines)
	start := intArg(args, "start_line", 1)
	end := intArg(args, "end_line", total)
	if start < 1 {
		start = 1
	}
	if end > total {
		end = total
	}
	if start > end {
		return failure(fmt.Sprintf("Invalid line range %d-%d for %s (%d lines)", start, end, rel, total))
	}
	content := strings.Join(lines[start-1:end], "\n")

	return ok(fmt.Sprintf("Read %s (lines %d-%d of %d)", rel, start, end, total),
		map[string]any{"path": rel, "content": content, "total_lines": total})
}

// writeFileTool creates or overwrites a file.
type writeFileTool struct {
	projectDir string
}

func (t *writeFileTool) Name() string { return "write_file" }

func (t *writeFileTool) Description() string {
	return "Write content to a file (creates or overwrites). Use this to create new files or update existing ones."
}

func (t *writeFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file relative to the project directory",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The complete content to write to the file",
			},
		},
		"required": []string{"file_path", "content"},
	}
}

func (t *writeFileTool) Execute(ctx context.Context, args map[string]any) Result {
	rel, okPath := stringArg(args, "file_path")
	if !okPath {
		return failure("write_file requires a 'file_path' argument")
	}
	content, okContent := args["content"].(string)
	if !okContent {
		return failure("write_file requires a 'content' argument")
	}
	full, err := resolvePath(t.projectDir, rel)
	if err != nil {
		return failure(err.Error())
	}

	_, statErr := os.Stat(full)
	created := os.IsNotExist(statErr)

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return failure(fmt.Sprintf("Failed to create directory for %s: %v", rel, err))
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return failure(fmt.Sprintf("Failed to write %s: %v", rel, err))
	}

	verb := "Updated"
	if created {
		verb = "Created"
	}
	return ok(fmt.Sprintf("%s %s (%d bytes)", verb, rel, len(content)),
		map[string]any{"path": rel, "created": created, "bytes": len(content)},
		"Run tests to verify the change")
}

// listFilesTool lists a directory with metadata.
type listFilesTool struct {
	projectDir string
}

func (t *listFilesTool) Name() string { return "list_files" }

func (t *listFilesTool) Description() string {
	return "List files in a directory with metadata."
}

func (t *listFilesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"directory": map[string]any{
				"type":        "string",
				"description": "Directory path relative to the project (default '.')",
			},
			"pattern": map[string]any{
				"type":        "string",
				"description": "File name pattern to match (default '*')",
			},
		},
	}
}

func (t *listFilesTool) Execute(ctx context.Context, args map[string]any) Result {
	dir, _ := stringArg(args, "directory")
	if dir == "" {
		dir = "."
	}
	pattern, _ := stringArg(args, "pattern")
	if pattern == "" {
		pattern = "*"
	}
	full, err := resolvePath(t.projectDir, dir)
	if err != nil {
		return failure(err.Error())
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(fmt.Sprintf("Directory not found: %s", dir), "Check the directory path")
		}
		return failure(fmt.Sprintf("Failed to list %s: %v", dir, err))
	}

	var files []any
	for _, entry := range entries {
		if matched, _ := filepath.Match(pattern, entry.Name()); !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, map[string]any{
			"name":   entry.Name(),
			"is_dir": entry.IsDir(),
			"size":   info.Size(),
		})
	}

	return ok(fmt.Sprintf("Listed %d entries in %s", len(files), dir),
		map[string]any{"directory": dir, "entries": files})
}

// projectStructureTool renders a bounded directory tree.
type projectStructureTool struct {
	projectDir string
}

func (t *projectStructureTool) Name() string { return "project_structure" }

func (t *projectStructureTool) Description() string {
	return "Get an overview of the project directory structure."
}

func (t *projectStructureTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"max_depth": map[string]any{
				"type":        "integer",
				"description": "Maximum depth to traverse (default 3)",
			},
		},
	}
}

func (t *projectStructureTool) Execute(ctx context.Context, args map[string]any) Result {
	maxDepth := intArg(args, "max_depth", 3)
	if maxDepth < 1 {
		maxDepth = 1
	}

	var b strings.Builder
	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if depth > maxDepth {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, entry := range entries {
			if entry.Name() == ".git" || entry.Name() == ".emergent" {
				continue
			}
			indent := strings.Repeat("  ", depth-1)
			if entry.IsDir() {
				fmt.Fprintf(&b, "%s%s/\n", indent, entry.Name())
				walk(filepath.Join(dir, entry.Name()), depth+1)
			} else {
				fmt.Fprintf(&b, "%s%s\n", indent, entry.Name())
			}
		}
	}
	walk(t.projectDir, 1)

	tree := b.String()
	if tree == "" {
		tree = "(empty project directory)\n"
	}
	return ok("Project structure", map[string]any{"tree": tree, "max_depth": maxDepth})
}
