package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/prreview/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached responses and stored reviews",
}

var cacheDirs = []string{"responses", "reviews"}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached provider responses and stored reviews",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		var total int
		for _, name := range cacheDirs {
			st, err := openCacheDir(ws, name)
			if err != nil {
				return err
			}
			n, err := st.Clear()
			if err != nil {
				return fmt.Errorf("clearing %s: %w", name, err)
			}
			total += n
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%d entries).\n", total)
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		stats := make(map[string]store.Stats, len(cacheDirs))
		for _, name := range cacheDirs {
			st, err := openCacheDir(ws, name)
			if err != nil {
				return err
			}
			s, err := st.Stats()
			if err != nil {
				return fmt.Errorf("reading %s stats: %w", name, err)
			}
			stats[name] = s
		}
		data, err := json.MarshalIndent(map[string]any{
			"enabled": ws.cfg.Cache.Enabled,
			"ttl":     ws.cfg.Cache.TTL.String(),
			"stores":  stats,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func openCacheDir(ws *workspace, name string) (*store.Store, error) {
	dir, err := ws.cacheDir(name)
	if err != nil {
		return nil, err
	}
	return store.Open(dir)
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}
