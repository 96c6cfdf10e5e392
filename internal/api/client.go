package api

import (
	"context"
	"io"

	"github.com/FranLegon/drive-web/internal/model"
)

// Drive defines the operations the web front-end needs from a cloud drive.
type Drive interface {
	// Listing
	ListChildren(ctx context.Context, query string) ([]*model.Node, error)
	GetFile(ctx context.Context, fileID string) (*model.Node, error)

	// Content
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
	Export(ctx context.Context, fileID string, mimeType string) (io.ReadCloser, error)
	CreateFile(ctx context.Context, parentID string, title string, content io.Reader) (*model.Node, error)

	// Account
	UserEmail(ctx context.Context) (string, error)
}

// Lister is the subset of Drive used for folder navigation.
type Lister interface {
	ListChildren(ctx context.Context, query string) ([]*model.Node, error)
}
