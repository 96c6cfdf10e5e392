// Package navigator resolves a folder path, or a folder ID, to the listing the
// user should see. Every time a listing holds exactly one folder the walk
// descends into it, consuming the next path segment if one is left.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FranLegon/drive-web/internal/api"
	"github.com/FranLegon/drive-web/internal/google"
	"github.com/FranLegon/drive-web/internal/model"
)

// DefaultMaxDepth bounds descent when Options.MaxDepth is zero.
const DefaultMaxDepth = 32

var (
	// ErrTooDeep is returned when descent exceeds the configured depth.
	ErrTooDeep = errors.New("folder nesting exceeds the navigation depth limit")
	// ErrCycle is returned when descent would enter a folder twice.
	ErrCycle = errors.New("folder structure contains a cycle")
)

// Options configures a walk.
type Options struct {
	MaxDepth int
}

// Result is the terminal listing of a walk.
type Result struct {
	// FolderID is the folder whose children were listed last.
	FolderID string
	Entries  []*model.Node
	// Depth counts the folders descended into.
	Depth int
}

// IsSingleFolder reports whether nodes holds exactly one folder-typed entry.
func IsSingleFolder(nodes []*model.Node) bool {
	return len(nodes) == 1 && nodes[0].IsFolder()
}

// Navigate starts at folderID and walks down segments.
func Navigate(ctx context.Context, lister api.Lister, segments []string, folderID string, opts Options) (*Result, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	visited := map[string]bool{folderID: true}
	index := 0
	depth := 0
	for {
		title := ""
		if index < len(segments) {
			title = segments[index]
		}

		contents, err := lister.ListChildren(ctx, google.Query(folderID, title))
		if err != nil {
			return nil, fmt.Errorf("navigate %q: %w", folderID, err)
		}

		if !IsSingleFolder(contents) {
			if title != "" {
				// The segment does not name a folder here: show this folder instead.
				index = len(segments)
				continue
			}
			return &Result{FolderID: folderID, Entries: contents, Depth: depth}, nil
		}

		next := contents[0].ID
		if visited[next] {
			return nil, fmt.Errorf("navigate %q: %w", next, ErrCycle)
		}
		if depth+1 > maxDepth {
			return nil, fmt.Errorf("navigate %q: %w", next, ErrTooDeep)
		}

		visited[next] = true
		folderID = next
		depth++
		index++
	}
}

// SplitPath turns a slash-separated folder path into segments. Empty segments
// are dropped, and so is everything up to and including the first segment
// equal to rootName, so paths may be given relative to the drive or to the
// root folder.
func SplitPath(path, rootName string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	if rootName == "" {
		return segments
	}
	for i, s := range segments {
		if s == rootName {
			return segments[i+1:]
		}
	}
	return segments
}
