package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/detent/internal/config"
	"github.com/aretw0/detent/internal/presentation/graph"
	"github.com/aretw0/detent/internal/presentation/tui"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Show the sheets mirrored to redis by a running engine",
	Long: `Reads the snapshots a detent server mirrors to redis and prints the
presentation stack as markdown, a mermaid chart or JSON.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("redis"); addr != "" {
			cfg.Redis = &config.Redis{Addr: addr}
		}
		if cfg.Redis == nil {
			return errors.New("no redis configured: pass --redis or set redis.addr in the config")
		}
		format, _ := cmd.Flags().GetString("format")

		ctx := cmd.Context()
		store, err := openStore(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer store.Close()

		ids, err := store.List(ctx)
		if err != nil {
			return err
		}
		snaps := make([]*domain.Snapshot, 0, len(ids))
		var topmost *domain.Snapshot
		for _, id := range ids {
			snap, err := store.Load(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				continue // expired between List and Load
			}
			if err != nil {
				return err
			}
			snaps = append(snaps, snap)
			if snap.Live && len(snap.Children) == 0 && (topmost == nil || snap.UpdatedAt.After(topmost.UpdatedAt)) {
				topmost = snap
			}
		}

		var top string
		if topmost != nil {
			top = topmost.ID
		}
		return renderStack(cmd.OutOrStdout(), snaps, top, format)
	},
}

func init() {
	rootCmd.AddCommand(stackCmd)
	stackCmd.Flags().String("redis", "", "Redis address (overrides config)")
	stackCmd.Flags().StringP("format", "f", "markdown", "Output format: markdown, mermaid or json")
}

func renderStack(out io.Writer, snaps []*domain.Snapshot, topmost, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	case "mermaid":
		_, err := fmt.Fprint(out, graph.GenerateMermaid(snaps, &graph.StackOverlay{Topmost: topmost}))
		return err
	case "markdown":
		md := tui.StackMarkdown(snaps, topmost)
		if isTerminal(out) {
			rendered, err := tui.NewRenderer()(md)
			if err == nil {
				md = rendered
			}
		}
		_, err := fmt.Fprint(out, md)
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
