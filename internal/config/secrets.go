package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"

	"github.com/FranLegon/drive-web/internal/crypto"
)

const (
	// SecretsFile is the name of the encrypted secrets file.
	SecretsFile = "secrets.json.enc"
	// SaltFile holds the Argon2 salt for the master password.
	SaltFile = "secrets.salt"

	// EnvMasterPassword lets the server start without a terminal.
	EnvMasterPassword = "DRIVE_WEB_MASTER_PASSWORD"
)

// Secrets holds the values that never go into the plain settings file.
type Secrets struct {
	GoogleClient ClientCredentials `json:"google_client"`
	// SessionSecret is the input of the key that seals stored OAuth tokens.
	SessionSecret string `json:"session_secret"`
}

// ClientCredentials holds the OAuth 2.0 client ID and secret for the Google API.
type ClientCredentials struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// SecretsExist reports whether dir already holds an encrypted secrets file.
func SecretsExist(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, SecretsFile))
	return err == nil
}

// LoadSecrets decrypts and loads the secrets stored in dir.
// It requires the master password to derive the decryption key.
func LoadSecrets(dir, masterPassword string) (*Secrets, error) {
	salt, err := crypto.LoadSalt(filepath.Join(dir, SaltFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("salt file not found. please run the 'init' command first")
		}
		return nil, fmt.Errorf("failed to read salt file: %w", err)
	}

	ciphertext, err := os.ReadFile(filepath.Join(dir, SecretsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("secrets file not found. please run the 'init' command first")
		}
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	plaintext, err := crypto.Decrypt(ciphertext, crypto.DeriveKey(masterPassword, salt))
	if err != nil {
		return nil, errors.New("failed to decrypt secrets: master password may be incorrect")
	}

	var s Secrets
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}
	return &s, nil
}

// SaveSecrets encrypts s and writes it to dir, creating the salt on first use.
func SaveSecrets(dir, masterPassword string, s *Secrets) error {
	saltPath := filepath.Join(dir, SaltFile)
	salt, err := crypto.LoadSalt(saltPath)
	if os.IsNotExist(err) {
		salt, err = crypto.GenerateAndSaveSalt(saltPath)
	}
	if err != nil {
		return fmt.Errorf("failed to prepare salt: %w", err)
	}

	plaintext, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode secrets: %w", err)
	}

	ciphertext, err := crypto.Encrypt(plaintext, crypto.DeriveKey(masterPassword, salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt secrets for saving: %w", err)
	}

	// Write with permissions that only allow the current user to read/write.
	return os.WriteFile(filepath.Join(dir, SecretsFile), ciphertext, 0600)
}

// Validate checks that every secret is present.
func (s *Secrets) Validate() error {
	var errs []error
	if s.GoogleClient.ID == "" {
		errs = append(errs, errors.New("google client id is missing"))
	}
	if s.GoogleClient.Secret == "" {
		errs = append(errs, errors.New("google client secret is missing"))
	}
	if s.SessionSecret == "" {
		errs = append(errs, errors.New("session secret is missing"))
	}
	return errors.Join(errs...)
}

func validatePassword(input string) error {
	if len(input) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	return nil
}

// GetMasterPassword returns the master password from the environment, or
// prompts for it without echoing the characters to the terminal.
func GetMasterPassword(confirm bool) (string, error) {
	if password, ok := os.LookupEnv(EnvMasterPassword); ok {
		if err := validatePassword(password); err != nil {
			return "", fmt.Errorf("%s: %w", EnvMasterPassword, err)
		}
		return password, nil
	}

	prompt := promptui.Prompt{
		Label:    "Enter Master Password",
		Mask:     '*',
		Validate: validatePassword,
	}

	password, err := prompt.Run()
	if err != nil {
		return "", err
	}

	if confirm {
		confirmPrompt := promptui.Prompt{
			Label:    "Confirm Master Password",
			Mask:     '*',
			Validate: validatePassword,
		}
		confirmation, err := confirmPrompt.Run()
		if err != nil {
			return "", err
		}
		if password != confirmation {
			return "", errors.New("passwords do not match")
		}
	}

	return password, nil
}

// PromptClientCredentials asks for the Google OAuth client ID and secret.
func PromptClientCredentials() (ClientCredentials, error) {
	notEmpty := func(input string) error {
		if input == "" {
			return errors.New("value is required")
		}
		return nil
	}

	idPrompt := promptui.Prompt{Label: "Google Client ID", Validate: notEmpty}
	id, err := idPrompt.Run()
	if err != nil {
		return ClientCredentials{}, err
	}

	secretPrompt := promptui.Prompt{Label: "Google Client Secret", Mask: '*', Validate: notEmpty}
	secret, err := secretPrompt.Run()
	if err != nil {
		return ClientCredentials{}, err
	}

	return ClientCredentials{ID: id, Secret: secret}, nil
}
