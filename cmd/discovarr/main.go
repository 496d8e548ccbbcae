// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/discovarr/internal/api"
	"github.com/autobrr/discovarr/internal/buildinfo"
	"github.com/autobrr/discovarr/internal/cache"
	"github.com/autobrr/discovarr/internal/config"
	"github.com/autobrr/discovarr/internal/discovery"
	"github.com/autobrr/discovarr/internal/domain"
	"github.com/autobrr/discovarr/internal/metrics"
	"github.com/autobrr/discovarr/internal/tmdb"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "discovarr",
		Short: "A self-hosted content discovery server",
		Long: `discovarr - A self-hosted content discovery server that aggregates
popular, top rated and recommended movies and TV from TMDB.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		logPath   string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/discovarr/ or %APPDATA%\\discovarr\\). For backward compatibility, can also be a direct path to a .toml file")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")

	command.Run = func(cmd *cobra.Command, args []string) {
		runServer(configDir, logPath)
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("discovarr %s", version)
			if buildinfo.Commit != "" {
				fmt.Printf(" (%s)", buildinfo.Commit)
			}
			if buildinfo.Date != "" {
				fmt.Printf(" built %s", buildinfo.Date)
			}
			fmt.Println()
		},
	}
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := configDir
			if dir == "" {
				dir = config.GetDefaultConfigDir()
			}
			path := filepath.Join(dir, "config.toml")
			if err := config.WriteDefaultConfig(path); err != nil {
				return errors.Wrap(err, "failed to write default config")
			}
			fmt.Printf("Config file written to %s\n", path)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "directory to write config.toml into")

	return command
}

func runServer(configDir, logPath string) {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if logPath != "" {
		cfg.Config.LogPath = logPath
	}
	cfg.ApplyLogConfig()

	if cfg.Config.TMDBAPIKey == "" {
		log.Warn().Msg("No TMDB API key configured, discovery will return empty results")
	}

	catalog := tmdb.NewClient(cfg.Config.TMDBAPIURL, cfg.Config.TMDBAPIKey, cfg.Config.TMDBLanguage, 30)
	resultCache := cache.New(cfg.CacheTTL())

	discoveryService := discovery.NewService(catalog, resultCache, discovery.Config{
		PageMultiplier:       cfg.Config.PageMultiplier,
		AnimeCheckFallback:   cfg.Config.AnimeCheckFallback,
		MaxConcurrentFetches: cfg.Config.MaxConcurrentFetches,
	})
	cfg.RegisterReloadListener(func(updated *domain.Config) {
		discoveryService.ApplyConfig(updated)
	})

	server := api.NewServer(&api.Dependencies{
		Config:           cfg,
		Version:          buildinfo.Version,
		DiscoveryService: discoveryService,
	})

	var metricsServer *metrics.Server
	if cfg.Config.MetricsEnabled {
		metricsServer = metrics.NewServer(cfg.Config.MetricsHost, cfg.Config.MetricsPort)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down server cleanly")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shut down metrics server cleanly")
		}
	}
}
