// SPDX-License-Identifier: MIT

// Command lvchol factors symmetric positive definite matrices read from CSV
// or JSON files on a host or CUDA device.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/katalvlaran/lvgpu/config"
	"github.com/katalvlaran/lvgpu/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Build-time variables, overridden via ldflags.
var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-buildtime"
)

// cfgKey carries the loaded configuration from the root command to its
// subcommands.
type cfgKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, cfgKey{}, cfg)
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(cfgKey{}).(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "lvchol",
		Short:         "Cholesky factorization on host and CUDA devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(config.FlagConfig)
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			log.SetLogger(cfg.Log.Debug, cfg.Log.Sink())
			log.Logger().Debug("configuration loaded",
				zap.String("path", path),
				zap.String("backend", cfg.Device.Backend),
				zap.Int("device", cfg.Device.Index),
				zap.String("format", cfg.Output.Format))
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
	}
	config.AddFlags(root.PersistentFlags())
	root.AddCommand(newFactorCommand(), newDevicesCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), buildInfo())
		},
	}
}

func buildInfo() string {
	var s string
	s += fmt.Sprintln("Version:\t", Version)
	s += fmt.Sprintln("Go version:\t", runtime.Version())
	s += fmt.Sprintln("Git commit:\t", GitCommit)
	s += fmt.Sprintln("Built:\t\t", BuildTime)
	s += fmt.Sprintf("OS/Arch:\t %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return s
}

func main() {
	err := newRootCommand().Execute()
	log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "lvchol:", err)
		os.Exit(1)
	}
}
