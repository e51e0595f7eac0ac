package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avion00/buy2rent-vendormail/internal/credential"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage secrets in the OS keyring",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <mail-password|ai-api-key> <value>",
	Short: "Store a secret in the OS keyring",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := credentialKey(args[0])
		if err != nil {
			return err
		}
		if err := credential.Set(key, args[1]); err != nil {
			return err
		}
		fmt.Printf("stored %s\n", args[0])
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <mail-password|ai-api-key>",
	Short: "Remove a secret from the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := credentialKey(args[0])
		if err != nil {
			return err
		}
		if err := credential.Delete(key); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func credentialKey(name string) (string, error) {
	switch name {
	case "mail-password":
		return credential.KeyMailPassword, nil
	case "ai-api-key":
		return credential.KeyAIAPIKey, nil
	default:
		return "", fmt.Errorf("unknown credential %q (want mail-password or ai-api-key)", name)
	}
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}
