package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storeadmin/api/internal/models"
)

// operator actions are attributed to this actor in the security log
const cliActor = "cli"

var seedPermissionsCmd = &cobra.Command{
	Use:   "seed-permissions",
	Short: "Insert the static permission catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		added, err := a.permissions.Seed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d permissions added\n", added)
		return nil
	},
}

var bootstrapFlags struct {
	email     string
	firstName string
	lastName  string
}

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create a super administrator with a one-time temporary password",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		user, password, err := a.auth.BootstrapAdmin(cmd.Context(), bootstrapFlags.email, bootstrapFlags.firstName, bootstrapFlags.lastName)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "created %s (%s)\n", user.Email, user.ID)
		fmt.Fprintf(out, "temporary password: %s\n", password)
		fmt.Fprintln(out, "the password must be changed on first login and is not shown again")
		return nil
	},
}

var unlockEmail string

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Clear the lockout of an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		client := models.ClientContext{IPAddress: "127.0.0.1", UserAgent: "storeadmin-cli"}
		if err := a.security.UnlockByEmail(cmd.Context(), unlockEmail, cliActor, client); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s unlocked\n", unlockEmail)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedPermissionsCmd, bootstrapAdminCmd, unlockCmd)

	bootstrapAdminCmd.Flags().StringVar(&bootstrapFlags.email, "email", "", "administrator email")
	bootstrapAdminCmd.Flags().StringVar(&bootstrapFlags.firstName, "first-name", "Super", "first name")
	bootstrapAdminCmd.Flags().StringVar(&bootstrapFlags.lastName, "last-name", "Admin", "last name")
	_ = bootstrapAdminCmd.MarkFlagRequired("email")

	unlockCmd.Flags().StringVar(&unlockEmail, "email", "", "account email")
	_ = unlockCmd.MarkFlagRequired("email")
}
