package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/FranLegon/drive-web/internal/config"
	"github.com/FranLegon/drive-web/internal/crypto"
	"github.com/FranLegon/drive-web/internal/logger"
)

const sessionSecretBytes = 32

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Store Google client credentials and write a default settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := secretsDir()
		if config.SecretsExist(dir) {
			confirm := promptui.Prompt{
				Label:     "Secrets already exist. Overwrite",
				IsConfirm: true,
			}
			if _, err := confirm.Run(); err != nil {
				logger.Info("Operation cancelled.")
				return nil
			}
		}

		password, err := config.GetMasterPassword(true)
		if err != nil {
			return fmt.Errorf("failed to read master password: %w", err)
		}

		creds, err := config.PromptClientCredentials()
		if err != nil {
			return fmt.Errorf("failed to read client credentials: %w", err)
		}

		sessionSecret, err := crypto.RandomSecret(sessionSecretBytes)
		if err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}

		secrets := &config.Secrets{GoogleClient: creds, SessionSecret: sessionSecret}
		if err := secrets.Validate(); err != nil {
			return errors.Join(errors.New("invalid secrets"), err)
		}
		if err := config.SaveSecrets(dir, password, secrets); err != nil {
			return err
		}

		if err := config.WriteDefaultSettings(configPath); err != nil {
			return fmt.Errorf("failed to write settings: %w", err)
		}

		logger.InfoTagged([]string{"Init"}, "Initialization complete")
		fmt.Printf("Register %s as an authorized redirect URI for this client.\n", settings.RedirectURL())
		return nil
	},
}
