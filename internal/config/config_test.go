package config

import (
	"strings"
	"testing"
)

// clearEnv empties every variable Load reads so tests are insulated from the
// host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SLACK_BOT_TOKEN", "SLACK_SIGNING_SECRET", "APPROVER_SLACK_ID",
		"GITHUB_TOKEN", "GITHUB_APP_ID", "GITHUB_INSTALLATION_ID",
		"GITHUB_PRIVATE_KEY_PATH", "GITHUB_REPO",
		"BASE_BRANCH", "JSON_FILE_PATH", "JSON_FILE_PATH_2", "LISTEN_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-token")
	t.Setenv("SLACK_SIGNING_SECRET", "secret")
	t.Setenv("GITHUB_TOKEN", "ghp_token")
	t.Setenv("GITHUB_REPO", "acme/config-repo")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BaseBranch != "main" {
		t.Errorf("BaseBranch = %q, want main", cfg.BaseBranch)
	}
	if cfg.PublishListPath != "client-data.json" {
		t.Errorf("PublishListPath = %q, want client-data.json", cfg.PublishListPath)
	}
	if cfg.WhitelistPath != "workflow-whitelist.json" {
		t.Errorf("WhitelistPath = %q, want workflow-whitelist.json", cfg.WhitelistPath)
	}
	if cfg.ListenAddr != "0.0.0.0:3000" {
		t.Errorf("ListenAddr = %q, want 0.0.0.0:3000", cfg.ListenAddr)
	}
	if cfg.ApproverID != "" {
		t.Errorf("ApproverID = %q, want empty", cfg.ApproverID)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("BASE_BRANCH", "develop")
	t.Setenv("JSON_FILE_PATH", "data/clients.json")
	t.Setenv("APPROVER_SLACK_ID", "U123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BaseBranch != "develop" {
		t.Errorf("BaseBranch = %q, want develop", cfg.BaseBranch)
	}
	if cfg.PublishListPath != "data/clients.json" {
		t.Errorf("PublishListPath = %q", cfg.PublishListPath)
	}
	if cfg.ApproverID != "U123" {
		t.Errorf("ApproverID = %q, want U123", cfg.ApproverID)
	}
}

func TestLoadReportsAllMissing(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for empty environment")
	}
	for _, want := range []string{
		"SLACK_BOT_TOKEN",
		"SLACK_SIGNING_SECRET",
		"GITHUB_REPO",
		"GITHUB_TOKEN or GITHUB_APP_ID",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadAppAuthNeedsKeyPath(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_APP_ID", "12345")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "GITHUB_PRIVATE_KEY_PATH") {
		t.Fatalf("expected missing key path error, got %v", err)
	}

	t.Setenv("GITHUB_PRIVATE_KEY_PATH", "/etc/bot/key.pem")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GitHubAppID != 12345 {
		t.Errorf("GitHubAppID = %d, want 12345", cfg.GitHubAppID)
	}
}

func TestLoadRejectsBadAppID(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("GITHUB_APP_ID", "not-a-number")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "GITHUB_APP_ID") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
