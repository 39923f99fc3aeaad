package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"copycraft/internal/access"
	"copycraft/internal/allowlist"
	"copycraft/internal/app"
	"copycraft/internal/auth"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Manage the access allow-list",
	Long: `Inspect and change authorization records in the configured access store.

Emails are normalized (trimmed, lower case) before they are stored.

Examples:
  copycraft access list
  copycraft access add alice@example.com --active
  copycraft access approve bob@example.com
  copycraft access revoke bob@example.com`,
}

// withStore opens the configured access store for one command.
func withStore(fn func(ctx context.Context, store allowlist.Admin, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := app.OpenAccessStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		return fn(cmd.Context(), store, cmd, args)
	}
}

var accessListCmd = &cobra.Command{
	Use:   "list",
	Short: "List authorization records",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, store allowlist.Admin, cmd *cobra.Command, _ []string) error {
		pendingOnly, _ := cmd.Flags().GetBool("pending")
		return listRecords(ctx, store, cmd.OutOrStdout(), pendingOnly)
	}),
}

var accessApproveCmd = &cobra.Command{
	Use:   "approve <email>",
	Short: "Mark a record active",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, store allowlist.Admin, cmd *cobra.Command, args []string) error {
		return setActive(ctx, store, cmd.OutOrStdout(), args[0], true)
	}),
}

var accessRevokeCmd = &cobra.Command{
	Use:   "revoke <email>",
	Short: "Mark a record inactive",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, store allowlist.Admin, cmd *cobra.Command, args []string) error {
		return setActive(ctx, store, cmd.OutOrStdout(), args[0], false)
	}),
}

var accessAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create a record, pending unless --active is given",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, store allowlist.Admin, cmd *cobra.Command, args []string) error {
		active, _ := cmd.Flags().GetBool("active")
		return addRecord(ctx, store, cmd.OutOrStdout(), args[0], active, time.Now())
	}),
}

func listRecords(ctx context.Context, store allowlist.Admin, out io.Writer, pendingOnly bool) error {
	records, err := store.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tSTATUS\tCREATED")
	for _, r := range records {
		if pendingOnly && r.Active {
			continue
		}
		status := "pending"
		if r.Active {
			status = "active"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Email, status, r.CreatedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func setActive(ctx context.Context, store allowlist.Admin, out io.Writer, email string, active bool) error {
	key, err := normalizedKey(email)
	if err != nil {
		return err
	}

	if err := store.SetActive(ctx, key, active); err != nil {
		if errors.Is(err, access.ErrRecordNotFound) {
			return fmt.Errorf("%s has no authorization record; use 'access add'", key)
		}
		return err
	}

	verb := "revoked"
	if active {
		verb = "approved"
	}
	fmt.Fprintf(out, "%s %s\n", key, verb)
	return nil
}

func addRecord(ctx context.Context, store allowlist.Admin, out io.Writer, email string, active bool, now time.Time) error {
	key, err := normalizedKey(email)
	if err != nil {
		return err
	}

	err = store.CreateIfAbsent(ctx, key, access.Record{
		Email:     key,
		Active:    active,
		CreatedAt: now.UTC(),
	})
	switch {
	case err == nil:
	case errors.Is(err, access.ErrRecordExists):
		fmt.Fprintf(out, "%s already exists\n", key)
		if !active {
			return nil
		}
		return setActive(ctx, store, out, key, true)
	default:
		return err
	}

	// stores may report success for an existing key
	rec, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if active && !rec.Active {
		return setActive(ctx, store, out, key, true)
	}

	fmt.Fprintf(out, "%s added (active=%t)\n", key, rec.Active)
	return nil
}

func normalizedKey(email string) (string, error) {
	key := auth.NormalizeEmail(email)
	if key == "" {
		return "", errors.New("email is required")
	}
	return key, nil
}

func init() {
	accessListCmd.Flags().Bool("pending", false, "only show records awaiting approval")
	accessAddCmd.Flags().Bool("active", false, "create the record already approved")

	accessCmd.AddCommand(accessListCmd, accessApproveCmd, accessRevokeCmd, accessAddCmd)
	rootCmd.AddCommand(accessCmd)
}
