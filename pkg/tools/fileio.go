package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const maxReadBytes = 1 << 20 // 1 MiB

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type readFileArgs struct {
	Path string `json:"path"`
}

// RegisterFileTools adds sandboxed read_file/write_file tools rooted at
// baseDir to reg, in the teacher pack's fileio.go shape. allowPaths, when
// non-empty, restricts access to those subpaths of baseDir
// (config.Tools.AllowPaths); denyPaths (config.Tools.DenyPaths) carves out
// subpaths that stay off-limits even when allowed by the above.
func RegisterFileTools(reg *Registry, baseDir string, allowPaths, denyPaths []string) {
	reg.Register(Definition{
		Name:        "write_file",
		Description: "Write text content to a file within the sandboxed notes directory.",
		Parameters: map[string]ParamSchema{
			"path":    {Type: "string", MaxLength: 512},
			"content": {Type: "string", MaxLength: maxReadBytes},
		},
		Required: []string{"path", "content"},
	}, func(ctx context.Context, raw json.RawMessage) (string, error) {
		var a writeFileArgs
		if err := json.Unmarshal(raw, &a); err != nil {
			return "", fmt.Errorf("write_file: %w", err)
		}
		if !pathIsAllowed(a.Path, allowPaths) || pathIsDenied(a.Path, denyPaths) {
			return "", fmt.Errorf("write_file: path %q is denied", a.Path)
		}
		abs, err := SafePath(baseDir, a.Path)
		if err != nil {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return "", fmt.Errorf("write_file: %w", err)
		}
		if err := os.WriteFile(abs, []byte(a.Content), 0o644); err != nil {
			return "", fmt.Errorf("write_file: %w", err)
		}
		out, _ := json.Marshal(map[string]any{"path": a.Path, "bytes_written": len(a.Content)})
		return string(out), nil
	})

	reg.Register(Definition{
		Name:        "read_file",
		Description: "Read the text content of a file from the sandboxed notes directory.",
		Parameters: map[string]ParamSchema{
			"path": {Type: "string", MaxLength: 512},
		},
		Required:     []string{"path"},
		ParallelSafe: true,
	}, func(ctx context.Context, raw json.RawMessage) (string, error) {
		var a readFileArgs
		if err := json.Unmarshal(raw, &a); err != nil {
			return "", fmt.Errorf("read_file: %w", err)
		}
		if !pathIsAllowed(a.Path, allowPaths) || pathIsDenied(a.Path, denyPaths) {
			return "", fmt.Errorf("read_file: path %q is denied", a.Path)
		}
		abs, err := SafePath(baseDir, a.Path)
		if err != nil {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("read_file: %w", err)
		}
		if info.Size() > maxReadBytes {
			return "", fmt.Errorf("read_file: file %q is too large (%d bytes)", a.Path, info.Size())
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return "", fmt.Errorf("read_file: %w", err)
		}
		out, _ := json.Marshal(map[string]any{"path": a.Path, "content": string(data)})
		return string(out), nil
	})
}
