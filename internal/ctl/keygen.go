package ctl

import (
	"fmt"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/cryptox"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a master key (and optionally a JWT secret)",
	Long: `Generate a random 32-byte master key, base64 encoded, suitable for
HOMEDOCK_MASTER_KEY. With --jwt a random HOMEDOCK_JWT_SECRET is printed too.
Keep both out of version control.
`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "HOMEDOCK_MASTER_KEY=%s\n", cryptox.GenerateMasterKey())

		withJWT, _ := cmd.Flags().GetBool("jwt")
		if withJWT {
			secret, err := common.MakeRandHexString(32)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "HOMEDOCK_JWT_SECRET=%s\n", secret)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().Bool("jwt", false, "also generate a JWT secret")
}
