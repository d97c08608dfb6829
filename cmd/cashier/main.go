// Command cashier runs a point-of-sale register session against the configured store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/kasir/internal/config"
	"github.com/noah-isme/kasir/internal/session"
)

type rootOptions struct {
	StoreID     string
	CashierID   string
	CashierName string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "cashier",
		Short:         "Point-of-sale register",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.StoreID, "store", "", "store id (defaults to STORE_ID)")
	cmd.PersistentFlags().StringVar(&opts.CashierID, "cashier", "", "cashier id recorded on sales")
	cmd.PersistentFlags().StringVar(&opts.CashierName, "cashier-name", "", "cashier name printed on receipts")

	cmd.AddCommand(newSessionCommand(opts))
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newReprintCommand(opts))
	return cmd
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg)
}

func newSessionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Start an interactive register session on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			sess := newSession(a, opts)
			a.logger.Info().Str("store_id", sess.StoreID()).Str("cashier_id", opts.CashierID).Msg("session started")
			return newREPL(sess, cmd.OutOrStdout(), a.cfg.Currency()).run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.migrate(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info().Str("driver", a.cfg.StoreDriver).Msg("schema up to date")
			return nil
		},
	}
}

func newReprintCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reprint <sale-id>",
		Short: "Print the receipt of a committed sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			text, err := newSession(a, opts).Reprint(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s", describe(err))
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newSession(a *app, opts *rootOptions) *session.Session {
	storeID := opts.StoreID
	if storeID == "" {
		storeID = a.cfg.StoreID
	}
	return session.New(session.Config{
		StoreID:     storeID,
		CashierID:   opts.CashierID,
		CashierName: opts.CashierName,
		Catalog:     a.catalog,
		Checkout:    a.coordinator,
		Receipt:     a.storeInfo(),
		Logger:      a.logger,
	})
}
