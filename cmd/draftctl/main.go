// Command draftctl inspects and maintains the draft and open-card records
// kept by the session service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"studio-session/internal/draft"
	"studio-session/internal/kv"
	"studio-session/internal/log"
	"studio-session/internal/opencard"
	"studio-session/internal/ttl"
)

type app struct {
	store  kv.Store
	drafts *draft.Manager
	cards  *opencard.Tracker
	now    func() time.Time
}

func (a *app) nowMillis() int64 {
	return a.now().UnixMilli()
}

func BuildRootCmd() *cobra.Command {
	var driver, path string
	var ttlHours int
	a := &app{now: time.Now}

	cmd := &cobra.Command{
		Use:          "draftctl",
		Short:        "Inspect and sweep persisted drafts and open-card markers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.SetLevel(zerolog.WarnLevel)
			if ttlHours <= 0 {
				return fmt.Errorf("--ttl-hours must be positive")
			}
			store, err := kv.Open(cmd.Context(), driver, path)
			if err != nil {
				return err
			}
			maxAge := time.Duration(ttlHours) * time.Hour
			a.store = store
			a.drafts = draft.New(store, maxAge)
			a.cards = opencard.New(store, maxAge)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store == nil {
				return nil
			}
			return a.store.Close()
		},
	}

	cmd.PersistentFlags().StringVarP(&driver, "driver", "d", "sqlite", "store driver: file or sqlite")
	cmd.PersistentFlags().StringVarP(&path, "path", "p", "", "store path")
	cmd.PersistentFlags().IntVar(&ttlHours, "ttl-hours", int(ttl.DefaultTTL/time.Hour), "draft lifetime in hours")

	cmd.AddCommand(
		buildListCmd(a),
		buildPendingCmd(a),
		buildSweepCmd(a),
		buildClearCmd(a),
	)
	return cmd
}

func buildListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list USER_ID",
		Short: "Print the user's fresh drafts and open cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, now := args[0], a.nowMillis()
			client, status := a.drafts.PeekClientDraft(userID, now)
			projects, err := a.drafts.ListProjectDrafts(userID, now)
			if err != nil {
				return err
			}
			cards, err := a.cards.List(userID, now)
			if err != nil {
				return err
			}
			out := map[string]any{
				"clientDraftStatus": status.String(),
				"projectDrafts":     projects,
				"openCards":         cards,
			}
			if status == ttl.Fresh {
				out["clientDraft"] = client
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func buildPendingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pending USER_ID",
		Short: "Report whether the user has a project draft or open card to resume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, now := args[0], a.nowMillis()
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"project":  a.drafts.HasAnyUnsavedProject(userID, now),
				"openCard": a.cards.HasAnyOpenCard(userID, now),
			})
		},
	}
}

func buildSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep USER_ID...",
		Short: "Delete expired drafts and open cards",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.nowMillis()
			var errs *multierror.Error
			removed := 0
			for _, userID := range args {
				n, err := a.drafts.EvictExpired(userID, now)
				removed += n
				errs = multierror.Append(errs, err)
				n, err = a.cards.EvictExpired(userID, now)
				removed += n
				errs = multierror.Append(errs, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired records\n", removed)
			return errs.ErrorOrNil()
		},
	}
}

func buildClearCmd(a *app) *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "clear USER_ID",
		Short: "Delete the user's client draft, or one project draft with --client-id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID != "" {
				return a.drafts.ClearProjectDraft(args[0], clientID)
			}
			return a.drafts.ClearClientDraft(args[0])
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "clear the project draft for this client")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := BuildRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
