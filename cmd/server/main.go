package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"dashboard/internal/api"
	"dashboard/internal/config"
	"dashboard/internal/engine"
	"dashboard/internal/logging"
	"dashboard/internal/models"
	"dashboard/internal/pipeline"
	"dashboard/internal/render"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "Console series sales dashboard",
		Long: `Fetches video-game sales for a console series and year from the data
service at HOST_API and shows ten charts derived from them.`,
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		RunE:  runServe,
	}
	root.AddCommand(serve)
	root.RunE = runServe

	render := &cobra.Command{
		Use:   "render",
		Short: "Run the pipeline once and write the figures to a directory",
		RunE:  runRender,
	}
	render.Flags().String("console-serie", string(models.DefaultSelection().ConsoleFamily), "console family")
	render.Flags().Int("year", models.DefaultSelection().Year, "year")
	render.Flags().String("out", "figures", "output directory")
	root.AddCommand(render)

	return root
}

// setup loads configuration and builds the pipeline collaborators.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, *engine.HTTPSource, *render.Renderer, error) {
	cfg, err := config.Load(config.DefaultEnvFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	src := engine.NewHTTPSource(cfg.HostAPI, cfg.FetchTimeout, engine.WithLogger(log))
	return cfg, log, src, render.New(log), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, src, r, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t0 := time.Now()
	sel, initial := pipeline.Initialize(ctx, src, r)
	if initial.Err != nil {
		log.Warn("startup run failed; serving the unavailable notice", slog.Any("error", initial.Err))
	} else {
		log.Info("startup run complete", slog.Duration("took", time.Since(t0)))
	}
	ctrl := pipeline.New(src, r, sel, initial, log)

	e := api.NewServer(ctrl, cfg.RateLimit, log)
	errc := make(chan error, 1)
	go func() {
		log.Info("server ready", slog.String("addr", cfg.ListenAddr))
		errc <- e.Start(cfg.ListenAddr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdown)
}

func runRender(cmd *cobra.Command, _ []string) error {
	family, _ := cmd.Flags().GetString("console-serie")
	year, _ := cmd.Flags().GetInt("year")
	out, _ := cmd.Flags().GetString("out")

	sel, err := models.ParseSelection(family, strconv.Itoa(year))
	if err != nil {
		return err
	}
	_, log, src, r, err := setup(cmd)
	if err != nil {
		return err
	}

	res := pipeline.Execute(cmd.Context(), src, r, sel)
	if res.Err != nil {
		log.Error("pipeline run failed", slog.String("kind", string(models.Kind(res.Err))), slog.Any("error", res.Err))
		return fmt.Errorf("%s: %w", pipeline.Notice, res.Err)
	}
	return writeFigures(out, sel, res)
}

// writeFigures writes one PNG per slot plus the chart specs as bundle.json.
func writeFigures(dir string, sel models.Selection, res pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, f := range res.Figures {
		name := filepath.Join(dir, fmt.Sprintf("slot-%02d-%s.png", i, f.ID))
		if err := os.WriteFile(name, f.PNG, 0o644); err != nil {
			return err
		}
	}
	doc := struct {
		Selection   models.Selection    `json:"selection"`
		Description string              `json:"description"`
		Charts      models.FigureBundle `json:"charts"`
	}{sel, pipeline.Describe(sel), res.Bundle}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "bundle.json"), b, 0o644)
}
