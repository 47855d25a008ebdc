package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gaslink/config"
	"gaslink/delivery"
	"gaslink/handlers/redirect"
	"gaslink/helpers"
	"gaslink/links"
	"gaslink/metrics"
	"gaslink/slug"
	"gaslink/store"
	"gaslink/workers"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "gaslink",
		Short:        "Subdomain redirector for hosted apps",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "optional config file (yaml, json or toml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve tenant redirects",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), cfgFile)
			},
		},
		newMigrateCmd(&cfgFile),
		newLinkCmd(&cfgFile),
	)
	return root
}

func runServe(parent context.Context, cfgFile string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := openDB(cfg, logger)
	if err != nil {
		logger.Error("open database", zap.Error(err))
		return err
	}
	defer db.Close()
	st := store.New(db)

	c, closeCache, err := newCache(cfg, logger)
	if err != nil {
		logger.Error("open cache", zap.Error(err))
		return err
	}
	defer closeCache()

	m := metrics.New()
	tasks := workers.NewDispatcher(logger, m, cfg.UsageWorkers, cfg.UsageQueue, cfg.UsageTimeout)
	tasks.Start()

	rh := redirect.New(redirect.Deps{
		Store:     st,
		Cache:     c,
		Usage:     workers.NewRecorder(st, tasks, logger),
		Slugs:     slug.NewResolver(cfg.BaseDomain, cfg.HostDenylist),
		Policy:    delivery.NewPolicy(cfg.FrameHosts),
		Log:       logger,
		Metrics:   m,
		RenewURL:  cfg.RenewURL,
		GeoHeader: cfg.GeoHeader,
	})

	var limiter *helpers.RateLimiter
	if cfg.RateLimitMax > 0 {
		limiter = helpers.NewRateLimiter(ctx, cfg.RateLimitMax, cfg.RateLimitPer)
	}

	srv := NewServer(logger, m, rh, limiter, cfg.AppEnv)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(":" + cfg.Port) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			tasks.Stop()
			return err
		}
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.E.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	tasks.Stop()
	logger.Info("usage tasks drained")
	return nil
}

func newMigrateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back the schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			driver, dsn := cfg.Database()
			db, err := store.Open(driver, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.Migrate(db, args[0]); err != nil {
				return fmt.Errorf("migration %s failed: %w", args[0], err)
			}
			logger.Info("migration completed", zap.String("direction", args[0]))
			return nil
		},
	}
}

// linkEnv is what the link subcommands share.
type linkEnv struct {
	cfg     *config.Config
	svc     *links.Service
	cleanup func()
}

func openLinkEnv(cfgFile string) (*linkEnv, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	c, closeCache, err := newCache(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	svc := links.NewService(store.New(db), c, delivery.NewPolicy(cfg.FrameHosts), logger)
	return &linkEnv{
		cfg: cfg,
		svc: svc,
		cleanup: func() {
			closeCache()
			db.Close()
			_ = logger.Sync()
		},
	}, nil
}

func newLinkCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Create, update or delete tenant links",
	}
	cmd.AddCommand(newLinkCreateCmd(cfgFile), newLinkUpdateCmd(cfgFile), newLinkDeleteCmd(cfgFile))
	return cmd
}

func newLinkCreateCmd(cfgFile *string) *cobra.Command {
	var in links.CreateInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openLinkEnv(*cfgFile)
			if err != nil {
				return err
			}
			defer env.cleanup()

			l, err := env.svc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printLink(cmd, env.cfg, l)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.OwnerID, "owner", "", "owner user id")
	f.StringVar(&in.Slug, "slug", "", "tenant slug")
	f.StringVar(&in.DestinationURL, "url", "", "destination URL (http or https)")
	f.StringVar(&in.Title, "title", "", "page title used when framed")
	f.StringVar(&in.Mode, "mode", "auto", "delivery mode: auto, frame or direct")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("slug")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newLinkUpdateCmd(cfgFile *string) *cobra.Command {
	var (
		slugFlag, urlFlag, titleFlag, modeFlag string
		active                                 bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in links.UpdateInput
			f := cmd.Flags()
			if f.Changed("slug") {
				in.Slug = &slugFlag
			}
			if f.Changed("url") {
				in.DestinationURL = &urlFlag
			}
			if f.Changed("title") {
				in.Title = &titleFlag
			}
			if f.Changed("mode") {
				in.Mode = &modeFlag
			}
			if f.Changed("active") {
				in.Active = &active
			}

			env, err := openLinkEnv(*cfgFile)
			if err != nil {
				return err
			}
			defer env.cleanup()

			l, err := env.svc.Update(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return printLink(cmd, env.cfg, l)
		},
	}
	f := cmd.Flags()
	f.StringVar(&slugFlag, "slug", "", "new slug")
	f.StringVar(&urlFlag, "url", "", "new destination URL")
	f.StringVar(&titleFlag, "title", "", "new title")
	f.StringVar(&modeFlag, "mode", "", "new delivery mode")
	f.BoolVar(&active, "active", true, "serve the link")
	return cmd
}

func newLinkDeleteCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLinkEnv(*cfgFile)
			if err != nil {
				return err
			}
			defer env.cleanup()

			if err := env.svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func printLink(cmd *cobra.Command, cfg *config.Config, l store.Link) error {
	out := map[string]any{
		"id":            l.ID,
		"slug":          l.Slug,
		"url":           l.DestinationURL,
		"title":         l.Title.String,
		"delivery_mode": l.DeliveryMode,
		"is_active":     l.IsActive,
		"click_count":   l.ClickCount,
		"short_url":     helpers.TenantURL(cfg.BaseDomain, "http://localhost:"+cfg.Port, l.Slug),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
