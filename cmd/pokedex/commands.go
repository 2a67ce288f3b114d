package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/pokedex/config"
	"github.com/jonwraymond/pokedex/internal/app"
)

// ErrPurgeNeedsRedis indicates a purge was requested against the in-process
// memory backend, which only the serving process can see.
var ErrPurgeNeedsRedis = errors.New("cache purge requires the redis backend")

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "pokedex",
		Short:         "Pokemon species lookups with translated descriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}} (commit: %s)\n", commit))
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newCacheCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func loadConfig(ctx context.Context, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Version == config.Default().Version {
		cfg.Version = version
	}
	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, opts)
			if err != nil {
				return err
			}

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
			}()

			return a.Run(ctx)
		},
	}
}

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the shared cache",
	}
	cmd.AddCommand(newCachePurgeCmd(opts))
	return cmd
}

func newCachePurgeCmd(opts *rootOptions) *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cache entries matching a glob pattern",
		Long: "Delete cache entries matching a Redis glob pattern. The pattern must\n" +
			"stay inside the configured namespace; it defaults to every entry in it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, opts)
			if err != nil {
				return err
			}
			if cfg.Cache.Backend != config.BackendRedis {
				return ErrPurgeNeedsRedis
			}

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
			}()

			ns := a.Keyer().Namespace()
			if pattern == "" {
				pattern = ns + ":*"
			}
			if !strings.HasPrefix(pattern, ns+":") {
				return fmt.Errorf("pattern %q must start with %q", pattern, ns+":")
			}

			n, err := a.Cache().DeletePattern(ctx, pattern)
			if err != nil {
				return fmt.Errorf("purge %q: %w", pattern, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries matching %s\n", n, pattern)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "glob pattern (default <namespace>:*)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pokedex version %s (commit: %s)\n", version, commit)
		},
	}
}
