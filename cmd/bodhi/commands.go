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
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

var (
	rootCmd = &cobra.Command{
		Use:   "bodhi",
		Short: "Run and manage a local llama-server backed model runtime",
		Long: `Bodhi runs a single shared llama-server subprocess behind an
OpenAI- and Ollama-compatible HTTP API, with a SQLite-backed alias
catalog and a download queue for pulling GGUF files from Hugging Face.`,
	}

	serveHost string
	servePort int
	serveCmd  = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}

	listRemote bool
	listCmd    = &cobra.Command{
		Use:   "list",
		Short: "List configured aliases and locally cached model files",
		RunE:  runList,
	}

	pullCmd = &cobra.Command{
		Use:   "pull <repo> <filename>",
		Short: "Download a GGUF file from a Hugging Face repo",
		Args:  cobra.ExactArgs(2),
		RunE:  runPull,
	}

	createRepo     string
	createFilename string
	createSnapshot string
	createCmd      = &cobra.Command{
		Use:   "create <alias>",
		Short: "Create a user alias binding a model name to a repo file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCreate,
	}

	showCmd = &cobra.Command{
		Use:   "show <alias>",
		Short: "Show the resolved definition of an alias",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	cpCmd = &cobra.Command{
		Use:   "cp <alias> <new-name>",
		Short: "Copy a user alias under a new name",
		Args:  cobra.ExactArgs(2),
		RunE:  runCopy,
	}

	rmCmd = &cobra.Command{
		Use:   "rm <alias>",
		Short: "Delete a user alias",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemove,
	}

	editTemperature float64
	editHasTemp     bool
	editCmd         = &cobra.Command{
		Use:   "edit <alias>",
		Short: "Update a user alias's generation parameters",
		Args:  cobra.ExactArgs(1),
		RunE:  runEdit,
	}

	runCmd = &cobra.Command{
		Use:   "run <alias>",
		Short: "Load an alias's model into the shared llama-server process",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "host to bind")
	serveCmd.Flags().IntVar(&servePort, "port", 1135, "port to bind")

	listCmd.Flags().BoolVarP(&listRemote, "remote", "r", false, "include API-backed aliases in the listing")

	createCmd.Flags().StringVar(&createRepo, "repo", "", "Hugging Face repo, user/name")
	createCmd.Flags().StringVar(&createFilename, "filename", "", "GGUF filename within the repo")
	createCmd.Flags().StringVar(&createSnapshot, "snapshot", "main", "repo snapshot/revision")
	createCmd.MarkFlagRequired("repo")
	createCmd.MarkFlagRequired("filename")

	editCmd.Flags().Float64Var(&editTemperature, "temperature", 0, "pin the alias's sampling temperature")
	editCmd.Flags().BoolVar(&editHasTemp, "set-temperature", false, "apply --temperature (distinguishes 0 from unset)")

	rootCmd.AddCommand(serveCmd, listCmd, pullCmd, createCmd, showCmd, cpCmd, rmCmd, editCmd, runCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		return fmt.Errorf("loading environment config: %w", err)
	}
	cfg.Host = serveHost
	cfg.Port = servePort

	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.runBackground(ctx); err != nil {
		return fmt.Errorf("starting metadata refresher: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.srv.Run() }()

	a.logger.Info("bodhi listening", "host", cfg.Host, "port", cfg.Port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.mainDB.Close()

	aliases, err := a.catalogService().ListAliases(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tKIND")
	for _, alias := range aliases {
		if alias.Kind() == objs.AliasKindAPI && !listRemote {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", alias.AliasName(), alias.Kind())
	}
	return w.Flush()
}

func runPull(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.mainDB.Close()

	repo, err := objs.ParseRepo(args[0])
	if err != nil {
		return err
	}
	req, err := a.queue.Enqueue(cmd.Context(), repo, args[1])
	if err != nil {
		return err
	}
	fmt.Printf("queued download %s (%s)\n", req.ID, req.Status)
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.mainDB.Close()

	repo, err := objs.ParseRepo(createRepo)
	if err != nil {
		return err
	}
	alias, err := a.catalogService().CreateAlias(cmd.Context(), objs.UserAlias{
		Name:     args[0],
		Repo:     repo,
		Filename: createFilename,
		Snapshot: createSnapshot,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created alias %s -> %s:%s\n", alias.Name, alias.Repo, alias.Filename)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.mainDB.Close()

	alias, ok, err := a.catalogService().FindAlias(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", objs.ErrAliasNotFound, args[0])
	}
	fmt.Printf("%+v\n", alias)
	return nil
}

func runCopy(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.mainDB.Close()

	src, ok, err := a.catalogService().FindAlias(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", objs.ErrAliasNotFound, args[0])
	}
	user, ok := src.(objs.UserAlias)
	if !ok {
		return fmt.Errorf("%w: only user aliases may be copied", objs.ErrBadRequest)
	}
	clone, err := a.catalogService().CopyAlias(cmd.Context(), user.ID, args[1])
	if err != nil {
		return err
	}
	fmt.Printf("copied %s -> %s\n", args[0], clone.Name)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.mainDB.Close()

	alias, ok, err := a.catalogService().FindAlias(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", objs.ErrAliasNotFound, args[0])
	}
	user, ok := alias.(objs.UserAlias)
	if !ok {
		return fmt.Errorf("%w: only user aliases may be removed", objs.ErrBadRequest)
	}
	if err := a.catalogService().DeleteAlias(cmd.Context(), user.ID); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", args[0])
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.mainDB.Close()

	alias, ok, err := a.catalogService().FindAlias(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", objs.ErrAliasNotFound, args[0])
	}
	user, ok := alias.(objs.UserAlias)
	if !ok {
		return fmt.Errorf("%w: only user aliases may be edited", objs.ErrBadRequest)
	}
	if editHasTemp {
		user.RequestParams.Temperature = &editTemperature
	}
	if err := user.RequestParams.Validate(); err != nil {
		return err
	}
	if err := a.aliasStore().PutUserAlias(cmd.Context(), user); err != nil {
		return err
	}
	fmt.Printf("updated %s\n", args[0])
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadEnvConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.mainDB.Close()

	ctx := cmd.Context()
	alias, ok, err := a.catalogService().FindAlias(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", objs.ErrAliasNotFound, args[0])
	}
	user, ok := alias.(objs.UserAlias)
	if !ok {
		return fmt.Errorf("%w: run currently loads user aliases only", objs.ErrBadRequest)
	}

	hf, ok, err := a.findLocalFile(user)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s:%s is not downloaded locally, run `bodhi pull` first", objs.ErrNotFound, user.Repo, user.Filename)
	}

	serverArgs := llamaServerArgs(hf.AbsPath(), cfg.Port+1, user.ContextParams)
	return a.llama.Reload(ctx, &serverArgs)
}
