package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultSettingsFile is the settings file name looked up when --config is
// not given.
const DefaultSettingsFile = "drive-web.toml"

// Environment variables overriding settings. They win over the file.
const (
	EnvListenAddr     = "DRIVE_WEB_LISTEN_ADDR"
	EnvMetricsAddr    = "DRIVE_WEB_METRICS_ADDR"
	EnvBaseURL        = "DRIVE_WEB_BASE_URL"
	EnvRootFolderID   = "DRIVE_WEB_ROOT_FOLDER_ID"
	EnvRootFolderName = "DRIVE_WEB_ROOT_FOLDER_NAME"
	EnvSessionDB      = "DRIVE_WEB_SESSION_DB"
	EnvCookieSecure   = "DRIVE_WEB_COOKIE_SECURE"
	EnvLogLevel       = "DRIVE_WEB_LOG_LEVEL"
	EnvLogFormat      = "DRIVE_WEB_LOG_FORMAT"
	EnvDebug          = "DRIVE_WEB_DEBUG"
)

// Settings is the non-secret configuration of the server.
type Settings struct {
	ListenAddr  string `toml:"listen_addr"`
	MetricsAddr string `toml:"metrics_addr"`
	// BaseURL is the public URL of the server, used to build the OAuth
	// redirect URL.
	BaseURL string `toml:"base_url"`

	RootFolderID   string `toml:"root_folder_id"`
	RootFolderName string `toml:"root_folder_name"`
	MaxDepth       int    `toml:"max_depth"`

	SessionDB    string        `toml:"session_db"`
	SessionTTL   time.Duration `toml:"session_ttl"`
	CookieSecure bool          `toml:"cookie_secure"`

	UploadMemoryLimit int64 `toml:"upload_memory_limit"`

	VerifyIDToken bool   `toml:"verify_id_token"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	Debug         bool   `toml:"debug"`
}

// DefaultSettings returns the settings used for keys missing from the file.
func DefaultSettings() *Settings {
	return &Settings{
		ListenAddr:        ":8000",
		MetricsAddr:       ":9090",
		BaseURL:           "http://localhost:8000",
		RootFolderID:      "root",
		MaxDepth:          32,
		SessionDB:         "sessions.db",
		SessionTTL:        14 * 24 * time.Hour,
		UploadMemoryLimit: 32 << 20,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// LoadSettings reads path over the defaults, applies environment overrides
// and validates the result. A missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if _, err := os.Stat(path); err == nil {
		md, err := toml.DecodeFile(path, s)
		if err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	strs := map[string]*string{
		EnvListenAddr:     &s.ListenAddr,
		EnvMetricsAddr:    &s.MetricsAddr,
		EnvBaseURL:        &s.BaseURL,
		EnvRootFolderID:   &s.RootFolderID,
		EnvRootFolderName: &s.RootFolderName,
		EnvSessionDB:      &s.SessionDB,
		EnvLogLevel:       &s.LogLevel,
		EnvLogFormat:      &s.LogFormat,
	}
	for env, dst := range strs {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		EnvCookieSecure: &s.CookieSecure,
		EnvDebug:        &s.Debug,
	}
	for env, dst := range bools {
		v, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks the settings for values the server cannot run with.
func (s *Settings) Validate() error {
	var errs []error

	if s.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q must be an absolute URL", s.BaseURL))
	}
	if s.RootFolderID == "" {
		errs = append(errs, errors.New("root_folder_id is required"))
	}
	if s.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_depth must be positive, got %d", s.MaxDepth))
	}
	if s.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session_ttl must be positive, got %s", s.SessionTTL))
	}
	if s.UploadMemoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("upload_memory_limit must be positive, got %d", s.UploadMemoryLimit))
	}
	if s.LogFormat != "json" && s.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", s.LogFormat))
	}

	return errors.Join(errs...)
}

// RedirectURL is the absolute OAuth2 callback URL registered with Google.
func (s *Settings) RedirectURL() string {
	return strings.TrimSuffix(s.BaseURL, "/") + "/oauth2callback/"
}

// WriteDefaultSettings writes a commented settings file with default values.
// An existing file is left alone.
func WriteDefaultSettings(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	d := DefaultSettings()
	content := fmt.Sprintf(`# drive-web settings. Every key can be omitted.

listen_addr = %q
# Empty disables the metrics listener.
metrics_addr = %q
base_url = %q

# Folder shown by list_folder when no folder_id is given.
root_folder_id = %q
# Path segments up to and including this name are ignored.
root_folder_name = %q
max_depth = %d

session_db = %q
session_ttl = %q
cookie_secure = false

upload_memory_limit = %d

verify_id_token = false
log_level = %q
log_format = %q
debug = false
`, d.ListenAddr, d.MetricsAddr, d.BaseURL, d.RootFolderID, d.RootFolderName, d.MaxDepth,
		d.SessionDB, d.SessionTTL.String(), d.UploadMemoryLimit, d.LogLevel, d.LogFormat)

	return os.WriteFile(path, []byte(content), 0644)
}
