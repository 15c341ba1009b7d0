package cli

import (
	"fmt"

	"github.com/example/bookhub/internal/infrastructure/config"
	"github.com/example/bookhub/internal/infrastructure/crypto"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate a credential encryption key (base64)",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export %s_CRED_ENC_KEY=%s\n", config.Prefix, key)
			return nil
		},
	}
}
