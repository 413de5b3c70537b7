package adminctl

import (
	"context"
	"database/sql"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/bankguard/internal/remote"
)

func newSiteCommand(env *Env) *cobra.Command {
	site := &cobra.Command{
		Use:   "site",
		Short: "Show or switch the site kill-switch",
	}

	site.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the admin configuration row",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return env.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
					st, err := remote.NewPostgresAdminRepository(db).GetAdminStatus(ctx)
					if err != nil {
						return fmt.Errorf("failed to read admin row: %w", err)
					}
					printAdmin(cmd, st)
					return nil
				})
			},
		},
		setVisibilityCommand(env, "up", "Make the site visible", true),
		setVisibilityCommand(env, "down", "Hide the site; every tab moves to the unavailable page", false),
	)
	return site
}

func setVisibilityCommand(env *Env, use, short string, visible bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				if err := remote.NewPostgresAdminRepository(db).SetSiteVisibility(ctx, visible); err != nil {
					return fmt.Errorf("failed to switch site: %w", err)
				}
				env.Log.Info(ctx, "site visibility changed", "visible", visible)
				cmd.Printf("Site visible: %t\n", visible)
				return nil
			})
		},
	}
}

func newAgreementCommand(env *Env) *cobra.Command {
	agreement := &cobra.Command{
		Use:   "agreement",
		Short: "Reset or accept the administrator's legal agreement",
	}
	agreement.AddCommand(
		setAgreementCommand(env, "reset", "Require the agreement again on the admin pages", false),
		setAgreementCommand(env, "accept", "Mark the agreement as accepted", true),
	)
	return agreement
}

func setAgreementCommand(env *Env, use, short string, accepted bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				if err := remote.NewPostgresAdminRepository(db).SetAgreement(ctx, accepted); err != nil {
					return fmt.Errorf("failed to update agreement: %w", err)
				}
				env.Log.Info(ctx, "agreement changed", "accepted", accepted)
				cmd.Printf("Agreement accepted: %t\n", accepted)
				return nil
			})
		},
	}
}

func newContactCommand(env *Env) *cobra.Command {
	contact := &cobra.Command{
		Use:   "contact",
		Short: "Manage the contact details shown in the footer",
	}

	var email, address string
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the footer email and address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				if err := remote.NewPostgresAdminRepository(db).SetContact(ctx, email, address); err != nil {
					return fmt.Errorf("failed to update contact: %w", err)
				}
				cmd.Println("Contact details updated.")
				return nil
			})
		},
	}
	set.Flags().StringVar(&email, "email", "", "support email")
	set.Flags().StringVar(&address, "address", "", "postal address")
	contact.AddCommand(set)
	return contact
}

func printAdmin(cmd *cobra.Command, st remote.AdminStatus) {
	credit := st.HistoryCredit.String()
	if st.HistoryCredit.Unlimited() {
		credit = "unlimited"
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Site visible:\t%t\n", st.SiteVisible)
	fmt.Fprintf(w, "Agreement accepted:\t%t\n", st.AgreementAccepted)
	fmt.Fprintf(w, "Contact email:\t%s\n", st.ContactEmail)
	fmt.Fprintf(w, "Contact address:\t%s\n", st.ContactAddress)
	fmt.Fprintf(w, "History credit:\t%s\n", credit)
	w.Flush()
}
