package model

import (
	"strings"
	"time"
)

// FolderMimeType tags a Drive node as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// GoogleAppsPrefix is shared by every Drive-native document type.
const GoogleAppsPrefix = "application/vnd.google-apps."

// Node represents a file or folder in the remote drive
type Node struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MimeType     string    `json:"mime_type"`
	Parents      []string  `json:"parents"`
	ModifiedTime time.Time `json:"modified_time"`
	Size         int64     `json:"size"`
}

// IsFolder reports whether the node is a container.
func (n *Node) IsFolder() bool {
	return n != nil && n.MimeType == FolderMimeType
}

// IsGoogleDocument reports whether the node is a Drive-native document that
// has no binary content of its own and must be exported.
func (n *Node) IsGoogleDocument() bool {
	return n != nil && !n.IsFolder() && strings.HasPrefix(n.MimeType, GoogleAppsPrefix)
}

// Entry is one row of a rendered folder listing.
type Entry struct {
	ID           string
	Title        string
	ModifiedDate string
	IsFolder     bool
	// Path links to the listing of this entry; only set for folders.
	Path string
}

// ModifiedDate formats a modification time the way listings show it (YYYY-MM-DD).
func ModifiedDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
