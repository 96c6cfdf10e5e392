package google

import (
	"fmt"
	"strings"
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Query builds a Drive v3 search query for the non-trashed children of parent,
// optionally restricted to an exact name.
func Query(parent, title string) string {
	if title != "" {
		return fmt.Sprintf("'%s' in parents and name='%s' and trashed=false",
			queryEscaper.Replace(parent), queryEscaper.Replace(title))
	}
	return fmt.Sprintf("'%s' in parents and trashed=false", queryEscaper.Replace(parent))
}
