package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	"github.com/spf13/cobra"

	_ "github.com/dixieflatline76/Easel/pkg/wallpaper/providers/artic"
	_ "github.com/dixieflatline76/Easel/pkg/wallpaper/providers/metmuseum"
	_ "github.com/dixieflatline76/Easel/pkg/wallpaper/providers/unsplash"
)

// version is set via ldflags at release time.
var version = "dev"

func newRootCmd() *cobra.Command {
	opts := runOptions{}

	root := &cobra.Command{
		Use:   strings.ToLower(config.AppName),
		Short: "Puts a new museum artwork on your desktop every day",
		Long: `Easel fetches a public-domain artwork once a day, keeps a local library of
what it has shown and sets the image as the desktop wallpaper.

It runs in the background and exposes a small control API on the configured
control address (/current, /next, /previous, /ws, /metrics).`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := root.Flags()
	f.BoolVar(&opts.clearData, "clear-data", false, "Delete the download cache before starting")
	f.BoolVar(&opts.minimized, "minimized", false, "Start without showing any window")
	f.BoolVar(&opts.autostart, "autostart", false, "Launched by the system at login")
	f.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Application data directory (default ~/.easel)")

	root.AddCommand(newSetUnsplashKeyCmd(), newSourcesCmd())
	return root
}

func newSetUnsplashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-unsplash-key <access-key>",
		Short: "Store the Unsplash access key in the OS keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return fmt.Errorf("access key must not be empty")
			}
			if err := config.SetSecret(config.UnsplashKeyName, key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Unsplash access key saved.")
			return nil
		},
	}
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the available artwork sources",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range wallpaper.RegisteredSources() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func main() {
	if config.AppVersion == "" {
		config.AppVersion = version
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
