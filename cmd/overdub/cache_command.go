package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"overdub/internal/clipcache"
	"overdub/internal/config"
	"overdub/internal/logging"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear a kept working directory's clip cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand())
	cacheCmd.AddCommand(newCacheClearCommand())
	return cacheCmd
}

func cacheStoreAt(workDir string) (*clipcache.Store, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, errors.New("--work-dir is required")
	}
	expanded, err := config.ExpandPath(workDir)
	if err != nil {
		return nil, err
	}
	return clipcache.NewStore(filepath.Join(expanded, "cache"), logging.NewNop())
}

func newCacheStatsCommand() *cobra.Command {
	var workDir string

	cmd := &cobra.Command{
		Use:         "stats",
		Short:       "Show cached clip count and size",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cacheStoreAt(workDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cached clips: %d\n", store.Count())
			fmt.Fprintf(out, "Cache size: %s\n", humanize.IBytes(uint64(store.SizeBytes())))
			return nil
		},
	}
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Working directory of a kept run")
	return cmd
}

func newCacheClearCommand() *cobra.Command {
	var workDir string

	cmd := &cobra.Command{
		Use:         "clear",
		Short:       "Remove all cached clips",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cacheStoreAt(workDir)
			if err != nil {
				return err
			}
			count := store.Count()
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached clips\n", count)
			return nil
		},
	}
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Working directory of a kept run")
	return cmd
}
