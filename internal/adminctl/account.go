package adminctl

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"text/tabwriter"
	"unicode"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/remote"
)

const pinLength = 4

func newAccountCommand(env *Env) *cobra.Command {
	account := &cobra.Command{
		Use:   "account",
		Short: "Manage customer accounts (create, show, activate, restrict, set PIN)",
	}
	account.AddCommand(
		newAccountCreateCommand(env),
		newAccountShowCommand(env),
		setActiveCommand(env, "activate", "Lift the restriction on an account", true),
		setActiveCommand(env, "restrict", "Restrict an account; its open tabs are blocked", false),
		newAccountSetPINCommand(env),
	)
	return account
}

func newAccountCreateCommand(env *Env) *cobra.Command {
	var a remote.Account
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an active account with a fresh uuid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.Email == "" {
				return fmt.Errorf("%w: --email is required", common.ErrValidation)
			}
			if err := validatePIN(a.PIN); err != nil {
				return err
			}
			a.UUID = uuid.New().String()
			a.Active = true

			return env.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				created, err := remote.NewPostgresAccountRepository(db).Create(ctx, &a)
				if err != nil {
					return fmt.Errorf("failed to create account: %w", err)
				}
				env.Log.Info(ctx, "account created", "uuid", created.UUID)
				cmd.Printf("Created account %d (%s)\n", created.ID, created.UUID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&a.Email, "email", "", "account email")
	cmd.Flags().StringVar(&a.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&a.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&a.PIN, "pin", "", "4-digit screen-lock PIN")
	return cmd
}

func newAccountShowCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <uuid|email>",
		Short: "Show an account's restriction flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				repo := remote.NewPostgresAccountRepository(db)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()

				if id, err := uuid.Parse(args[0]); err == nil {
					st, err := repo.GetAccountStatus(ctx, id.String())
					if err != nil {
						return fmt.Errorf("failed to read account: %w", err)
					}
					fmt.Fprintf(w, "UUID:\t%s\n", st.UUID)
					fmt.Fprintf(w, "Active flag:\t%s\n", st.Active)
					fmt.Fprintf(w, "Restricted:\t%t\n", st.Restricted())
					fmt.Fprintf(w, "PIN set:\t%t\n", st.PIN != "")
					return nil
				}

				a, err := repo.FindByEmail(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to read account: %w", err)
				}
				fmt.Fprintf(w, "ID:\t%d\n", a.ID)
				fmt.Fprintf(w, "UUID:\t%s\n", a.UUID)
				fmt.Fprintf(w, "Email:\t%s\n", a.Email)
				fmt.Fprintf(w, "Name:\t%s\n", strings.TrimSpace(a.FirstName+" "+a.LastName))
				fmt.Fprintf(w, "Restricted:\t%t\n", !a.Active)
				fmt.Fprintf(w, "PIN set:\t%t\n", a.PIN != "")
				return nil
			})
		},
	}
}

func setActiveCommand(env *Env, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <uuid>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			return env.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				if err := remote.NewPostgresAccountRepository(db).SetActive(ctx, id, active); err != nil {
					return fmt.Errorf("failed to update account: %w", err)
				}
				env.Log.Info(ctx, "account flag changed", "uuid", id, "active", active)
				cmd.Printf("Account %s active: %t\n", id, active)
				return nil
			})
		},
	}
}

func newAccountSetPINCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set-pin <uuid> <pin>",
		Short: "Replace an account's screen-lock PIN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			if err := validatePIN(args[1]); err != nil {
				return err
			}
			return env.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				if err := remote.NewPostgresAccountRepository(db).SetPIN(ctx, id, args[1]); err != nil {
					return fmt.Errorf("failed to set PIN: %w", err)
				}
				cmd.Println("PIN updated.")
				return nil
			})
		},
	}
}

func parseUUID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: invalid uuid %q", common.ErrValidation, s)
	}
	return id.String(), nil
}

func validatePIN(pin string) error {
	if len(pin) != pinLength {
		return fmt.Errorf("%w: PIN must have %d digits", common.ErrValidation, pinLength)
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return fmt.Errorf("%w: PIN must have %d digits", common.ErrValidation, pinLength)
		}
	}
	return nil
}
