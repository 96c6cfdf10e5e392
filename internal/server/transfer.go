package server

import (
	"errors"
	"io"
	"path"
	"strings"
)

var (
	errFolderDownload      = errors.New("folders cannot be downloaded")
	errMissingName         = errors.New("upload needs a name")
	errMissingContent      = errors.New("upload needs a content file")
	errAuthorizationDenied = errors.New("authorization was declined")
	errStateMismatch       = errors.New("authorization state does not match this session")
)

// exportFormat is the download format of a Drive-native document.
type exportFormat struct {
	MimeType string
	Ext      string
}

var exportFormats = map[string]exportFormat{
	"application/vnd.google-apps.document": {
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Ext:      "docx",
	},
	"application/vnd.google-apps.spreadsheet": {
		MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Ext:      "xlsx",
	},
	"application/vnd.google-apps.presentation": {
		MimeType: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		Ext:      "pptx",
	},
	"application/vnd.google-apps.drawing": {
		MimeType: "image/png",
		Ext:      "png",
	},
}

var defaultExportFormat = exportFormat{MimeType: "application/pdf", Ext: "pdf"}

func exportFormatFor(mimeType string) exportFormat {
	if f, ok := exportFormats[mimeType]; ok {
		return f
	}
	return defaultExportFormat
}

// extension returns the title's extension without the dot. Characters that
// could break out of a header value are dropped.
func extension(title string) string {
	ext := strings.TrimPrefix(path.Ext(title), ".")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, ext)
}

// downloadName is the generic attachment filename sent with every download.
func downloadName(ext string) string {
	if ext == "" {
		return "download"
	}
	return "download." + ext
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
