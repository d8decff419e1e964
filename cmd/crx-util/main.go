package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	crxutil "github.com/cipher-rc5/crx-util"
)

var appVersion = "dev"

var (
	flagConfig  string
	flagOut     string
	flagTimeout time.Duration
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "crx-util <extension-id | crx-file>",
	Short: "Download and safely extract packaged Chrome extensions",
	Long: `crx-util fetches a CRX container from the Chrome Web Store (given a
32-character extension identifier or a store URL) or reads one from disk,
screens the embedded archive against zip-bomb and path-traversal attacks,
and extracts it into the extensions directory.`,
	Version:      appVersion,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if flagVerbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			logrus.SetLevel(lvl)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		start := time.Now()
		outcome, err := crxutil.ExtractWithConfig(ctx, cfg, args[0])
		if err != nil {
			if artifact := crxutil.RecoveryArtifact(err); artifact != "" {
				logrus.Warnf("archive preserved for manual inspection: %s", artifact)
			}
			return err
		}

		fmt.Printf("Extracted to %s in %v\n", outcome.OutputDir, time.Since(start).Round(time.Millisecond))
		if m := outcome.Manifest; m != nil {
			fmt.Printf("  %s %s (manifest v%d)\n", m.Name, m.Version, m.ManifestVersion)
			if m.Description != "" {
				fmt.Printf("  %s\n", m.Description)
			}
			if len(m.Permissions) > 0 {
				fmt.Printf("  permissions: %v\n", m.Permissions)
			}
		}
		return nil
	},
}

func loadConfig() (*crxutil.Config, error) {
	var cfg *crxutil.Config
	if flagConfig != "" {
		loaded, err := crxutil.LoadConfig(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = crxutil.DefaultConfig()
	}
	if flagOut != "" {
		cfg.ExtensionsDir = flagOut
		cfg.AllowedOutputPaths = append(cfg.AllowedOutputPaths, flagOut)
	}
	return cfg, nil
}

func main() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to configuration file")
	rootCmd.Flags().StringVarP(&flagOut, "out", "o", "", "extensions output directory (overrides config)")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Minute, "overall timeout for the extraction")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
