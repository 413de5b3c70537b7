// Package adminctl is the bank administrator's console: the commands behind
// cmd/bankadmin. It flips the flags the session guard watches (site
// visibility, legal agreement, account restriction) and manages accounts.
package adminctl

import (
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/bankguard/internal/logging"
	"github.com/dmitrijs2005/bankguard/internal/remote"
)

// Env carries what commands need from the outside. Zero fields fall back to
// the real database and stdout.
type Env struct {
	Open    func(ctx context.Context, dsn string) (*sql.DB, error)
	Migrate func(ctx context.Context, db *sql.DB) error
	Out     io.Writer
	Log     logging.Logger

	dsn string
}

func (e *Env) defaults() {
	if e.Open == nil {
		e.Open = remote.Open
	}
	if e.Migrate == nil {
		e.Migrate = remote.RunMigrations
	}
	if e.Out == nil {
		e.Out = os.Stdout
	}
	if e.Log == nil {
		e.Log = logging.NewNopLogger()
	}
}

// NewRootCommand builds the bankadmin command tree.
func NewRootCommand(env *Env) *cobra.Command {
	env.defaults()

	root := &cobra.Command{
		Use:           "bankadmin",
		Short:         "Administer the bank demo: site switch, agreement, accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&env.dsn, "dsn", "d", os.Getenv("BANK_DATABASE_DSN"),
		"bank database DSN (default $BANK_DATABASE_DSN)")
	root.SetOut(env.Out)

	root.AddCommand(
		newMigrateCommand(env),
		newSiteCommand(env),
		newAgreementCommand(env),
		newContactCommand(env),
		newAccountCommand(env),
	)
	return root
}

// withDB opens the database for the duration of fn.
func (e *Env) withDB(cmd *cobra.Command, fn func(ctx context.Context, db *sql.DB) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := e.Open(ctx, e.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, db)
}

func newMigrateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the bank schema and change-feed triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				if err := env.Migrate(ctx, db); err != nil {
					return err
				}
				env.Log.Info(ctx, "bank schema migrated")
				cmd.Println("Schema is up to date.")
				return nil
			})
		},
	}
}
