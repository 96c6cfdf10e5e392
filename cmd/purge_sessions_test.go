package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranLegon/drive-web/internal/database"
)

func TestPurgeSessions(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SaveSession(&database.Session{ID: "live", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, db.SaveSession(&database.Session{ID: "dead", ExpiresAt: time.Now().Add(-time.Hour)}))

	n, err := purgeSessions(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
