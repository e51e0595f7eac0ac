package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var engageCmd = &cobra.Command{
	Use:   "engage <issue-id>",
	Short: "Open the email conversation for an issue",
	Long: `Composes the initial vendor email for the given issue, embeds the
correlation identifier in its subject and body, sends it, and marks the
issue's AI conversation as activated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		entry, err := a.monitor.StartConversation(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("sent %q to %s (entry %s)\n", entry.Subject, entry.EmailTo, entry.ID)
		return nil
	},
}

var redraftCmd = &cobra.Command{
	Use:   "redraft <entry-id>",
	Short: "Draft a reply for a vendor message recorded without one",
	Long: `Runs analysis and drafting over an already-recorded vendor message.
This recovers messages recorded while the analyzer was unavailable; it
refuses when the thread already contains a reply to the message.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		draft, err := a.monitor.RedraftReply(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("queued draft %s for approval (issue %s)\n", draft.ID, draft.IssueID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(engageCmd)
	rootCmd.AddCommand(redraftCmd)
}
