package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"parashasongs/internal/config"
	"parashasongs/internal/db"
	"parashasongs/internal/models"
	"parashasongs/internal/moderation"
	"parashasongs/internal/notify"
	"parashasongs/internal/visits"
)

// env is what every command runs against.
type env struct {
	cfg *config.Config
	gw  db.Gateway
	mgr *moderation.Manager
}

// withEnv opens the configured database, runs fn and closes it.
func withEnv(ctx context.Context, fn func(e *env) error) error {
	cfg := config.Load()
	logger := cfg.InitLogger()

	ref, err := config.LoadReference(cfg.ReferenceFile)
	if err != nil {
		return err
	}

	gw, err := db.Open(ctx, db.Options{
		Driver:      cfg.DatabaseDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer gw.Close()

	// Commands never submit, so notifications only ever reach the log.
	mgr := moderation.NewManager(gw, ref, notify.NewDispatcher(logger), cfg, logger)
	return fn(&env{cfg: cfg, gw: gw, mgr: mgr})
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				fmt.Fprintf(cmd.OutOrStdout(), "%s database is up to date\n", e.cfg.DatabaseDriver)
				return nil
			})
		},
	}
}

func pendingCmd() *cobra.Command {
	var asJSON bool
	command := &cobra.Command{
		Use:   "pending",
		Short: "List links awaiting moderation, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				links, err := e.mgr.ListPending(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), links)
				}
				return writeLinks(cmd.OutOrStdout(), links)
			})
		},
	}
	command.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return command
}

func approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a link by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(e *env) error {
				link, err := e.mgr.Approve(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeLinks(cmd.OutOrStdout(), []models.LinkWithSong{*link})
			})
		},
	}
}

func rejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a link by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(e *env) error {
				link, err := e.mgr.Reject(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeLinks(cmd.OutOrStdout(), []models.LinkWithSong{*link})
			})
		},
	}
}

func redeemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <token>",
		Short: "Approve the link holding an approval token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				link, err := e.mgr.RedeemToken(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeLinks(cmd.OutOrStdout(), []models.LinkWithSong{*link})
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show song, queue and visit counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				total, err := e.mgr.TotalSongs(cmd.Context())
				if err != nil {
					return err
				}
				pending, err := e.gw.CountPending(cmd.Context())
				if err != nil {
					return err
				}
				v, err := visits.NewCounter(e.gw).Stats(cmd.Context())
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "approved songs\t%d\n", total)
				fmt.Fprintf(tw, "pending links\t%d\n", pending)
				fmt.Fprintf(tw, "visits\t%d\n", v.Total)
				fmt.Fprintf(tw, "unique visitors\t%d\n", v.UniqueIPs)
				fmt.Fprintf(tw, "visits (24h)\t%d\n", v.Last24h)
				return tw.Flush()
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid link id %q", s)
	}
	return id, nil
}

func writeLinks(w io.Writer, links []models.LinkWithSong) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTARGET\tSONG\tADDED")
	for _, l := range links {
		fmt.Fprintf(tw, "%d\t%s\t%s:%s\t%s\t%s\n",
			l.ID, l.Status, l.TargetKind, l.Target().ID(), l.SongTitle, l.AddedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
