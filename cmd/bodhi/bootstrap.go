// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bodhi-ml/bodhi/internal/auth"
	"github.com/bodhi-ml/bodhi/internal/catalog"
	"github.com/bodhi-ml/bodhi/internal/db"
	"github.com/bodhi-ml/bodhi/internal/downloadqueue"
	"github.com/bodhi-ml/bodhi/internal/hub"
	"github.com/bodhi-ml/bodhi/internal/llamactx"
	"github.com/bodhi-ml/bodhi/internal/objs"
	"github.com/bodhi-ml/bodhi/internal/procmanager"
	"github.com/bodhi-ml/bodhi/internal/secrets"
	"github.com/bodhi-ml/bodhi/internal/server"
	"github.com/bodhi-ml/bodhi/internal/settings"
	"github.com/bodhi-ml/bodhi/internal/toolorch"
	"github.com/bodhi-ml/bodhi/pkg/logging"
)

// app is the fully wired composition root: every long-lived collaborator
// plus the background goroutines that need their own shutdown.
type app struct {
	cfg EnvConfig

	mainDB    *db.DB
	sessions  *db.SessionStore
	encryptor *secrets.Encryptor
	fileStore *settings.FileStore

	logger  *logging.Logger
	srv     *server.Server
	queue   *downloadqueue.Queue
	worker  *downloadqueue.Worker
	refresh *downloadqueue.MetadataRefresher
	llama   *llamactx.Context

	catalog *catalog.Service
	aliases *db.AliasStore
	hfHome  string

	workerCancel context.CancelFunc
}

// bootstrap resolves $BODHI_HOME, opens every store, and wires the full
// dependency graph into a server.Deps. Grounded on the teacher's
// PersistentPreRun config-load step, generalized from a single
// config.yaml read into bodhi's layered settings.Service plus a typed
// envconfig pass for the handful of values that must be known before the
// settings database even exists.
func bootstrap(cfg EnvConfig) (*app, error) {
	home := cfg.Home
	if home == "" {
		home = defaultHome()
	}
	if err := settings.EnsureBodhiHome(home); err != nil {
		return nil, fmt.Errorf("preparing bodhi home %s: %w", home, err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  filepath.Join(home, "logs"),
		Service: "bodhi",
		JSON:    cfg.LogJSON,
		Quiet:   cfg.LogQuiet,
	})

	mainDB, err := db.Open(filepath.Join(home, "bodhi.sqlite"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sessions, err := db.OpenSessionStore(filepath.Join(home, "session.sqlite"))
	if err != nil {
		mainDB.Close()
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	fileStore, err := settings.NewFileStore(filepath.Join(home, "settings.yaml"))
	if err != nil {
		mainDB.Close()
		sessions.Close()
		return nil, fmt.Errorf("opening settings.yaml: %w", err)
	}

	aliases := db.NewAliasStore(mainDB)
	tokens := db.NewTokenStore(mainDB)
	apps := db.NewAppStore(mainDB)
	mcp := db.NewMcpStore(mainDB)
	downloads := db.NewDownloadStore(mainDB)
	settingsStore := db.NewSettingsStore(mainDB)

	svc := settings.New(settings.Config{
		Env:      settings.OSEnv,
		DB:       settingsStore,
		File:     fileStore,
		Defaults: defaultSettings(cfg),
	})
	svc.Subscribe(func(ev settings.ChangeEvent) {
		logger.Info("setting changed", "key", ev.Key, "prev_source", string(ev.PrevSource), "new_source", string(ev.NewSource))
	})
	fileStore.Watch(func() { logger.Debug("settings.yaml reloaded") })

	masterSecret := cfg.MasterSecret
	if masterSecret == "" {
		masterSecret = svc.GetString("master_secret", "bodhi-dev-insecure-default")
	}
	encryptor, err := secrets.NewEncryptor(masterSecret)
	if err != nil {
		return nil, fmt.Errorf("constructing encryptor: %w", err)
	}

	secretsChain := secrets.NewChainStore(
		secrets.EnvBackend{Prefix: "BODHI_SECRET_"},
		secrets.NewFileBackend(filepath.Join(home, "secrets.enc"), encryptor),
	)

	hfHome := svc.GetString("hf_home", filepath.Join(home, "hub"))
	cat := catalog.NewService(aliases, aliases, catalog.DirLegacyAliasSource{Dir: filepath.Join(home, "aliases")}, hfHome)

	llama := llamactx.New(llamactx.Config{
		ProcessManager: procmanager.NewDefaultProcessManager(),
		ExecPath:       cfg.LlamaServerExec,
	})
	svc.Subscribe(func(ev settings.ChangeEvent) {
		if ev.Key == "llamacpp_exec" {
			llama.SetExecVariant(ev.NewValue)
		}
	})

	downloader := hub.NewDownloader(hfHome, svc.GetString("hf_token", cfg.HFToken))
	queue := downloadqueue.NewQueue(downloads)
	worker := downloadqueue.NewWorker(downloads, downloader, 2*time.Second)
	refresher := downloadqueue.NewMetadataRefresher(aliases, http.DefaultClient)

	var idp auth.IdentityProvider = auth.NopIdentityProvider{}
	if cfg.KeycloakBaseURL != "" {
		idp = auth.NewKeycloakProvider(cfg.KeycloakBaseURL, cfg.KeycloakRealm, http.DefaultClient)
	}
	exchangeCache := auth.NewExchangeCache(idp)
	authChain := auth.Chain(tokens, sessions, idp, exchangeCache, cfg.OAuthClientID)

	mcpClient := toolorch.NewMCPClient(mcp, toolorch.NewCredentialStore(secretsChain, mcp, encryptor, http.DefaultClient))
	exa := toolorch.NewExaToolset(http.DefaultClient)
	grantFetcher := toolorch.NewDBGrantFetcher(apps)
	appGrants := toolorch.NewAppToolsetCache(grantFetcher)
	orchestrator := toolorch.NewOrchestrator(mcp, mcp, mcpClient, exa, appGrants, encryptor)

	identityURL := func(redirectURI, state string) string {
		if cfg.KeycloakBaseURL == "" {
			return ""
		}
		return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/auth?client_id=%s&redirect_uri=%s&response_type=code&scope=openid&state=%s",
			cfg.KeycloakBaseURL, cfg.KeycloakRealm, cfg.OAuthClientID, redirectURI, state)
	}

	deps := server.Deps{
		Settings:          svc,
		Catalog:           cat,
		Llama:             llama,
		Queue:             queue,
		Tools:             orchestrator,
		AuthChain:         authChain,
		Aliases:           aliases,
		Tokens:            tokens,
		Apps:              apps,
		MCP:               mcp,
		Sessions:          sessions,
		Encryptor:         encryptor,
		IdentityURL:       identityURL,
		IdP:               idp,
		OAuthClientID:     cfg.OAuthClientID,
		OAuthClientSecret: cfg.OAuthClientSecret,
		OAuthRedirectURI:  cfg.OAuthRedirectURI,
		Logger:            logger,
	}

	srv := server.New(cfg.Host, cfg.Port, deps)

	return &app{
		cfg:       cfg,
		mainDB:    mainDB,
		sessions:  sessions,
		encryptor: encryptor,
		fileStore: fileStore,
		logger:    logger,
		srv:       srv,
		queue:     queue,
		worker:    worker,
		refresh:   refresher,
		llama:     llama,
		catalog:   cat,
		aliases:   aliases,
		hfHome:    hfHome,
	}, nil
}

// catalogService exposes the wired alias catalog to cmd/bodhi's CLI
// subcommands, which need it directly rather than through server.Deps.
func (a *app) catalogService() *catalog.Service { return a.catalog }

// aliasStore exposes the user-alias repository directly for the edit
// subcommand, which mutates a UserAlias in place rather than going
// through CreateAlias's uniqueness check.
func (a *app) aliasStore() *db.AliasStore { return a.aliases }

// findLocalFile resolves a user alias's backing file on disk, nil
// snapshot meaning "whatever snapshot is present" just like the
// download worker's own default.
func (a *app) findLocalFile(user objs.UserAlias) (objs.HubFile, bool, error) {
	var snapshot *string
	if user.Snapshot != "" {
		snapshot = &user.Snapshot
	}
	return hub.FindLocalFile(a.hfHome, user.Repo, user.Filename, snapshot)
}

// runBackground starts the download worker on its own cancellable
// context and registers the metadata refresher's cron entry, both
// stopped again in shutdown before the HTTP server drains.
func (a *app) runBackground(ctx context.Context) error {
	workerCtx, workerCancel := context.WithCancel(ctx)
	a.workerCancel = workerCancel
	go a.worker.Run(workerCtx)

	return a.refresh.Start(ctx, "*/15 * * * *")
}

// shutdown reverses bootstrap in the opposite order: background workers
// first, then the HTTP server drain (which also stops llama-server),
// then the stores.
func (a *app) shutdown(ctx context.Context) error {
	if a.workerCancel != nil {
		a.workerCancel()
	}
	a.refresh.Stop()
	if err := a.srv.Shutdown(ctx, 10*time.Second); err != nil {
		a.logger.Error("server shutdown", "error", err)
	}
	a.encryptor.Destroy()
	a.fileStore.Close()
	a.sessions.Close()
	if err := a.mainDB.Close(); err != nil {
		return err
	}
	return a.logger.Close()
}

func defaultHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".bodhi")
	}
	return ".bodhi"
}

func defaultSettings(cfg EnvConfig) map[string]string {
	return map[string]string{
		"llamacpp_exec": cfg.LlamaServerExec,
	}
}

// llamaServerArgs builds the ServerArgs `run` starts llama-server with:
// the resolved model path on a fixed offset port from the bodhi API
// port, plus whatever extra flags the alias pins.
func llamaServerArgs(modelPath string, port int, extraArgs []string) llamactx.ServerArgs {
	return llamactx.ServerArgs{ModelPath: modelPath, Port: port, ExtraArgs: extraArgs}
}
