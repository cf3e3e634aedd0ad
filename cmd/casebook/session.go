// Session commands: add-user, login, whoami and logout.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/casebook/internal/session"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

var (
	passwordFlag string
	roleFlag     string
	fullNameFlag string
)

var addUserCmd = &cobra.Command{
	Use:   "add-user <email>",
	Short: "Create a user with a hashed password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		hash, err := session.HashPassword(password)
		if err != nil {
			return err
		}

		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		fields := map[string]any{"email": args[0], "password_hash": hash, "role": roleFlag}
		if fullNameFlag != "" {
			fields["full_name"] = fullNameFlag
		}
		rec, err := cb.Create(cmd.Context(), types.EntityUsers, fields)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Open a session",
	Long: `Login checks the password of the user and opens a session. The
session token is saved in the configuration directory and used by whoami
and logout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		s, err := cb.Sessions.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		if err := saveSessionToken(configDir, s.Token); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), s)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s until %s\n", s.UserID, s.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the user of the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := loadSessionToken(configDir)
		if err != nil {
			return err
		}

		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		s, err := cb.Sessions.Current(cmd.Context(), token)
		if err != nil {
			return err
		}
		user, err := cb.Get(cmd.Context(), types.EntityUsers, s.UserID)
		if err != nil {
			return fmt.Errorf("session user %s: %w", s.UserID, err)
		}
		delete(user.Fields, "password_hash")
		return printRecord(cmd.OutOrStdout(), user)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Close the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := loadSessionToken(configDir)
		if err != nil {
			return err
		}

		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		if err := cb.Sessions.Logout(cmd.Context(), token); err != nil {
			return err
		}
		return saveSessionToken(configDir, "")
	},
}

// readPassword returns --password, or the first line of stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	if passwordFlag != "" {
		return passwordFlag, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("%w: reading password: %v", errUsage, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	for _, c := range []*cobra.Command{addUserCmd, loginCmd} {
		c.Flags().StringVar(&passwordFlag, "password", os.Getenv("CASEBOOK_PASSWORD"), "password (default: read from stdin)")
	}
	addUserCmd.Flags().StringVar(&roleFlag, "role", "agent", "role (admin, manager, agent, viewer)")
	addUserCmd.Flags().StringVar(&fullNameFlag, "name", "", "full name")
}
