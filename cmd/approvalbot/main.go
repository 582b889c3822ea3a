package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/approvalbot/approvalbot/internal/config"
	"github.com/approvalbot/approvalbot/internal/core"
	gh "github.com/approvalbot/approvalbot/internal/github"
	httpsvr "github.com/approvalbot/approvalbot/internal/http"
	"github.com/approvalbot/approvalbot/internal/slack"
	"github.com/approvalbot/approvalbot/internal/workflow"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	var ghClient *gh.Client
	if cfg.GitHubToken != "" {
		ghClient = gh.NewTokenClient(cfg.GitHubToken)
	} else {
		ghClient, err = gh.NewAppClient(cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubPrivateKeyPath)
		if err != nil {
			logger.Error("github client init failed", "err", err)
			os.Exit(1)
		}
	}
	host, err := gh.NewHost(ghClient, cfg.Repo)
	if err != nil {
		logger.Error("invalid GITHUB_REPO", "err", err)
		os.Exit(1)
	}

	chat := slack.NewClient(cfg.SlackBotToken)
	proposer := core.NewProposer(host, cfg.BaseBranch)
	gate := core.NewGate(host, cfg.ApproverID)

	svc := core.Services{
		Chat:     chat,
		Proposer: proposer,
		Logger:   logger,
		Approver: cfg.ApproverID,
	}

	// Registration order is dispatch order: add new workflows at the end.
	router := core.NewRouter(logger,
		workflow.PublishList{Path: cfg.PublishListPath},
		workflow.Whitelist{Path: cfg.WhitelistPath},
	)

	logger.Info("effective config",
		"repo", cfg.Repo,
		"base_branch", cfg.BaseBranch,
		"publish_list_path", cfg.PublishListPath,
		"whitelist_path", cfg.WhitelistPath,
		"approver_configured", cfg.ApproverID != "",
	)

	server := httpsvr.NewServer(cfg.ListenAddr, router, svc, gate, cfg.SlackSigningSecret, cfg.ApproverID, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	server.Shutdown(ctx)
	logger.Info("shutdown complete")
}
