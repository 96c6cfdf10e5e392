package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/FranLegon/drive-web/internal/logger"
	"github.com/FranLegon/drive-web/internal/metrics"
	"github.com/FranLegon/drive-web/internal/model"
	"github.com/FranLegon/drive-web/internal/retry"
)

const (
	fileFields = "id, name, mimeType, parents, modifiedTime, size"
	listFields = "nextPageToken, files(" + fileFields + ")"
	pageSize   = 1000
)

var tags = []string{"Drive"}

// Client represents a Google Drive client bound to one user's credentials.
type Client struct {
	service *drive.Service
	retry   retry.Policy
}

// NewClient creates a Drive client from a token source.
func NewClient(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	return NewClientWithOptions(ctx, option.WithTokenSource(ts))
}

// NewClientWithOptions creates a Drive client from raw client options. Tests
// use it to point the client at a fake endpoint.
func NewClientWithOptions(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Client{service: service, retry: retry.Default}, nil
}

// SetRetryPolicy overrides the retry policy used for reads.
func (c *Client) SetRetryPolicy(p retry.Policy) {
	c.retry = p
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordDriveCall(op, time.Since(start), *err == nil)
}

// ListChildren returns every node matching query, following pagination.
func (c *Client) ListChildren(ctx context.Context, query string) (nodes []*model.Node, err error) {
	defer observe("list", time.Now(), &err)

	pageToken := ""
	for {
		var fileList *drive.FileList
		err = retry.Do(ctx, c.retry, func() error {
			call := c.service.Files.List().Q(query).Fields(listFields).PageSize(pageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var callErr error
			fileList, callErr = call.Do()
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}

		for _, f := range fileList.Files {
			nodes = append(nodes, toNode(f))
		}

		if fileList.NextPageToken == "" {
			break
		}
		pageToken = fileList.NextPageToken
	}

	logger.WithContext(ctx).Debug("listed children",
		zap.Strings("tags", tags), zap.String("query", query), zap.Int("count", len(nodes)))
	return nodes, nil
}

// GetFile retrieves file metadata.
func (c *Client) GetFile(ctx context.Context, fileID string) (node *model.Node, err error) {
	defer observe("get", time.Now(), &err)

	if fileID == "" {
		return nil, errors.New("file ID is required")
	}

	var f *drive.File
	err = retry.Do(ctx, c.retry, func() error {
		var callErr error
		f, callErr = c.service.Files.Get(fileID).Fields(fileFields).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get file metadata: %w", err)
	}
	return toNode(f), nil
}

// Download opens the binary content of a file. The caller closes the reader.
func (c *Client) Download(ctx context.Context, fileID string) (body io.ReadCloser, err error) {
	defer observe("download", time.Now(), &err)

	resp, err := c.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	logger.WithContext(ctx).Info("download stream started", zap.Strings("tags", tags), zap.String("file_id", fileID))
	return resp.Body, nil
}

// Export converts a Drive-native document to mimeType and opens the result.
func (c *Client) Export(ctx context.Context, fileID string, mimeType string) (body io.ReadCloser, err error) {
	defer observe("export", time.Now(), &err)

	resp, err := c.service.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to export file: %w", err)
	}

	logger.WithContext(ctx).Info("export stream started",
		zap.Strings("tags", tags), zap.String("file_id", fileID), zap.String("mime_type", mimeType))
	return resp.Body, nil
}

// CreateFile uploads content as a new file named title inside parentID.
func (c *Client) CreateFile(ctx context.Context, parentID string, title string, content io.Reader) (node *model.Node, err error) {
	defer observe("create", time.Now(), &err)

	file := &drive.File{
		Name:    title,
		Parents: []string{parentID},
	}

	created, err := c.service.Files.Create(file).Media(content).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	logger.WithContext(ctx).Info("created file",
		zap.Strings("tags", tags), zap.String("file_id", created.Id), zap.String("parent_id", parentID))
	return toNode(created), nil
}

// UserEmail returns the email address of the authenticated account.
func (c *Client) UserEmail(ctx context.Context) (email string, err error) {
	defer observe("about", time.Now(), &err)

	var about *drive.About
	err = retry.Do(ctx, c.retry, func() error {
		var callErr error
		about, callErr = c.service.About.Get().Fields("user(emailAddress)").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to get account info: %w", err)
	}
	if about.User == nil {
		return "", nil
	}
	return about.User.EmailAddress, nil
}

func toNode(f *drive.File) *model.Node {
	return &model.Node{
		ID:           f.Id,
		Title:        f.Name,
		MimeType:     f.MimeType,
		Parents:      f.Parents,
		ModifiedTime: parseTime(f.ModifiedTime),
		Size:         f.Size,
	}
}

func parseTime(timeStr string) time.Time {
	t, _ := time.Parse(time.RFC3339, timeStr)
	return t
}
