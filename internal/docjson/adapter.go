// Package docjson drives the external documentation-extraction command for
// one package at a time and locates its output artifact. It never touches
// the symbol store; that stays the Indexing Engine's job.
package docjson

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrIndexingFailed wraps an extractor failure, carrying stderr verbatim
// for diagnostics.
type ErrIndexingFailed struct {
	Package string
	Stderr  string
	Err     error
}

func (e *ErrIndexingFailed) Error() string {
	return fmt.Sprintf("docjson: extracting %s failed: %v: %s", e.Package, e.Err, e.Stderr)
}

func (e *ErrIndexingFailed) Unwrap() error { return e.Err }

// Adapter assembles and runs the extractor command and locates its output.
type Adapter struct {
	// Command is the extractor binary name, e.g. "extract_docs". Defaults
	// to "extract_docs" when empty.
	Command string
	// Timeout bounds a single package's extraction run. Zero means no
	// timeout beyond the caller's context.
	Timeout time.Duration
}

const defaultCommand = "extract_docs"

// Extract runs the extractor for one package inside workspaceDir and
// returns the path to the produced JSON artifact.
func (a Adapter) Extract(ctx context.Context, workspaceDir, packageName string) (string, error) {
	return a.ExtractWithArgs(ctx, workspaceDir, packageName, nil)
}

// ExtractWithArgs is Extract plus extra command-line arguments appended
// after the fixed flag set, used to thread `reindex{features, target}`
// through to the extractor without changing its required shape.
func (a Adapter) ExtractWithArgs(ctx context.Context, workspaceDir, packageName string, extraArgs []string) (string, error) {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	cmdName := a.Command
	if cmdName == "" {
		cmdName = defaultCommand
	}

	args := []string{
		"--package", packageName,
		"--format", "json",
		"--document-private-items",
	}
	args = append(args, extraArgs...)
	cmd := exec.CommandContext(ctx, cmdName, args...)
	cmd.Dir = workspaceDir

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &ErrIndexingFailed{Package: packageName, Stderr: stderr.String(), Err: err}
	}

	artifact, err := locateArtifact(workspaceDir, packageName)
	if err != nil {
		return "", &ErrIndexingFailed{Package: packageName, Stderr: stderr.String(), Err: err}
	}
	return artifact, nil
}

// locateArtifact tries both the raw package name and the
// hyphen/underscore-normalized variant, matching spec.md §4.5's two-name
// lookup rule.
func locateArtifact(workspaceDir, packageName string) (string, error) {
	docDir := filepath.Join(workspaceDir, "target", "doc")

	candidates := []string{
		packageName,
		strings.ReplaceAll(packageName, "-", "_"),
		strings.ReplaceAll(packageName, "_", "-"),
	}
	seen := make(map[string]bool, len(candidates))

	for _, name := range candidates {
		if seen[name] {
			continue
		}
		seen[name] = true

		path := filepath.Join(docDir, name+".json")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no output artifact found under %s for package %q (tried: %s)",
		docDir, packageName, strings.Join(candidates, ", "))
}
