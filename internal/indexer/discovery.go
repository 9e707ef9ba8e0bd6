package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
)

// Member is one workspace package discovered via the metadata command.
type Member struct {
	Name      string
	Version   string
	RootPath  string
	PackageID string
}

type cargoMetadata struct {
	WorkspaceMembers []string        `json:"workspace_members"`
	Packages         []cargoPackage  `json:"packages"`
}

type cargoPackage struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	ManifestPath string `json:"manifest_path"`
}

// DiscoverMembers runs the metadata command against workspaceRoot and
// returns every workspace member, mirroring discovery.rs's
// `cargo metadata --no-deps --format-version 1` invocation generalized to
// a configurable command name.
func DiscoverMembers(ctx context.Context, metadataCmd, workspaceRoot string) ([]Member, error) {
	if metadataCmd == "" {
		metadataCmd = "cargo"
	}
	cmd := exec.CommandContext(ctx, metadataCmd, "metadata", "--no-deps", "--format-version", "1")
	cmd.Dir = workspaceRoot

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%s metadata failed: %s", metadataCmd, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("run %s metadata: %w", metadataCmd, err)
	}

	var meta cargoMetadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("decode %s metadata output: %w", metadataCmd, err)
	}

	workspaceSet := make(map[string]bool, len(meta.WorkspaceMembers))
	for _, id := range meta.WorkspaceMembers {
		workspaceSet[id] = true
	}

	members := make([]Member, 0, len(meta.Packages))
	for _, pkg := range meta.Packages {
		if !workspaceSet[pkg.ID] {
			continue
		}
		members = append(members, Member{
			Name:      pkg.Name,
			Version:   pkg.Version,
			RootPath:  filepath.Dir(pkg.ManifestPath),
			PackageID: pkg.ID,
		})
	}
	return members, nil
}
