// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the full process configuration. All state beyond this is held in
// the chat conversation and the remote repository.
type Config struct {
	SlackBotToken      string
	SlackSigningSecret string
	// ApproverID restricts approve/decline to one chat identity. Empty means
	// anyone may resolve.
	ApproverID string

	// GitHub auth: either a personal access token, or App credentials.
	GitHubToken          string
	GitHubAppID          int64
	GitHubInstallationID int64
	GitHubPrivateKeyPath string

	Repo            string
	BaseBranch      string
	PublishListPath string
	WhitelistPath   string

	ListenAddr string
}

// Load reads configuration from the environment, loading a .env file first
// when one is present. All missing required values are reported together so
// a misconfigured deploy fails with one complete diagnostic.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		SlackBotToken:        os.Getenv("SLACK_BOT_TOKEN"),
		SlackSigningSecret:   os.Getenv("SLACK_SIGNING_SECRET"),
		ApproverID:           os.Getenv("APPROVER_SLACK_ID"),
		GitHubToken:          os.Getenv("GITHUB_TOKEN"),
		GitHubPrivateKeyPath: os.Getenv("GITHUB_PRIVATE_KEY_PATH"),
		Repo:                 os.Getenv("GITHUB_REPO"),
		BaseBranch:           getenv("BASE_BRANCH", "main"),
		PublishListPath:      getenv("JSON_FILE_PATH", "client-data.json"),
		WhitelistPath:        getenv("JSON_FILE_PATH_2", "workflow-whitelist.json"),
		ListenAddr:           getenv("LISTEN_ADDR", "0.0.0.0:3000"),
	}

	var err error
	if cfg.GitHubAppID, err = getenvInt64("GITHUB_APP_ID"); err != nil {
		return Config{}, err
	}
	if cfg.GitHubInstallationID, err = getenvInt64("GITHUB_INSTALLATION_ID"); err != nil {
		return Config{}, err
	}

	var missing []string
	for _, req := range []struct{ key, value string }{
		{"SLACK_BOT_TOKEN", cfg.SlackBotToken},
		{"SLACK_SIGNING_SECRET", cfg.SlackSigningSecret},
		{"GITHUB_REPO", cfg.Repo},
	} {
		if req.value == "" {
			missing = append(missing, req.key)
		}
	}
	if cfg.GitHubToken == "" && cfg.GitHubAppID == 0 {
		missing = append(missing, "GITHUB_TOKEN or GITHUB_APP_ID")
	}
	if cfg.GitHubAppID != 0 && cfg.GitHubPrivateKeyPath == "" {
		missing = append(missing, "GITHUB_PRIVATE_KEY_PATH")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt64(key string) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
