package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FranLegon/drive-web/internal/database"
)

var purgeSessionsCmd = &cobra.Command{
	Use:   "purge-sessions",
	Short: "Delete expired sessions from the session database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(settings.SessionDB)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := purgeSessions(db)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d expired session(s).\n", n)
		return nil
	},
}
