package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	appsvc "ragdesk/internal/app"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create [username]",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var (
	userPassword string
	userAdmin    bool
)

func init() {
	userCreateCmd.Flags().StringVarP(&userPassword, "password", "p", "", "Password (at least 8 characters)")
	userCreateCmd.Flags().BoolVar(&userAdmin, "admin", false, "Grant admin privileges")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	svc, err := services()
	if err != nil {
		return err
	}
	user, err := svc.Auth.CreateUser(appsvc.CreateUserInput{
		Username: args[0],
		Password: userPassword,
		IsAdmin:  userAdmin,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, admin=%t)\n", user.Username, user.ID, user.IsAdmin)
	return nil
}
