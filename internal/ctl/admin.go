package ctl

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/cryptox"
	"github.com/dmitrijs2005/homedock/internal/server"
	"github.com/dmitrijs2005/homedock/internal/server/services"
	"github.com/spf13/cobra"
)

var errPasswordMismatch = errors.New("passwords do not match")

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account or promote an existing one",
	Long: `Create an account holding the admin role. If the user already exists it
is granted admin and its password is replaced.

The password is prompted for twice without echo, or read from the first
line of standard input with --password-stdin.
`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		username, _ := cmd.Flags().GetString("username")
		fromStdin, _ := cmd.Flags().GetBool("password-stdin")

		password, err := readAdminPassword(cmd, fromStdin)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, m, err := server.OpenDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		log := newLogger()
		roles := services.NewRoleService(db, m, cfg.RoleCacheTTL, nil, log)
		if err := roles.EnsureSystemRoles(ctx); err != nil {
			return err
		}
		users := services.NewUserService(services.UserServiceDeps{
			DB:     db,
			Repos:  m,
			Roles:  roles,
			Hasher: cryptox.NewPasswordHasher(cryptox.DefaultPasswordParams),
			Logger: log,
		})

		created, err := users.EnsureAdmin(ctx, username, password)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q created\n", username)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "user %q granted admin, password replaced\n", username)
		}
		return nil
	},
}

func readAdminPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		pw, err := ReadLine(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if pw == "" {
			return "", fmt.Errorf("%w: password is empty", common.ErrValidation)
		}
		return pw, nil
	}

	out := cmd.ErrOrStderr()
	first, err := GetPassword(out, "Password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(first)

	second, err := GetPassword(out, "Repeat password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}

func init() {
	rootCmd.AddCommand(createAdminCmd)
	createAdminCmd.Flags().StringP("username", "u", "", "admin login name")
	createAdminCmd.Flags().Bool("password-stdin", false, "read the password from stdin")
	_ = createAdminCmd.MarkFlagRequired("username")
}
