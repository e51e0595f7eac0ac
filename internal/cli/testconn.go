package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testConnCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Verify IMAP and SMTP connectivity for the shared mailbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		status, err := a.mail.TestConnection(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testConnCmd)
}
