package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newRegisterCommand(e *env) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register <username> <email>",
		Short: "Create an account and store its token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			res, err := e.api.Register(e.ctx(cmd), args[0], args[1], password)
			if err != nil {
				return err
			}
			if err := e.tokens.Save(res.Token); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "registered %s (id %d)\n", res.User.Username, res.User.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newLoginCommand(e *env) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and store the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			res, err := e.api.Login(e.ctx(cmd), args[0], password)
			if err != nil {
				return err
			}
			if err := e.tokens.Save(res.Token); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "logged in as %s\n", res.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newWhoamiCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := e.api.Me(e.ctx(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s <%s> (id %d)\n", user.Username, user.Email, user.ID)
			return nil
		},
	}
}
