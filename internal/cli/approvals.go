package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avion00/buy2rent-vendormail/internal/approval"
)

var (
	pendingIssueID string
	approveActor   string
	editSubject    string
	editBody       string
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List AI drafts awaiting approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		drafts, err := a.gateway.ListPending(cmd.Context(), pendingIssueID)
		if err != nil {
			return err
		}

		if len(drafts) == 0 {
			fmt.Println("no drafts pending approval")
			return nil
		}

		for _, d := range drafts {
			flag := ""
			if d.AIConfidence != nil && *d.AIConfidence < a.cfg.AI.ConfidenceThreshold {
				// Visibility hint only; low confidence never blocks a send.
				flag = " [low confidence]"
			}
			confidence := "-"
			if d.AIConfidence != nil {
				confidence = fmt.Sprintf("%.2f", *d.AIConfidence)
			}
			fmt.Printf("%s  issue=%s  to=%s  confidence=%s%s\n  %s\n",
				d.ID, d.IssueID, d.EmailTo, confidence, flag, d.Subject)
		}
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <entry-id>",
	Short: "Approve a pending draft and send it unchanged",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		entry, err := a.gateway.Approve(cmd.Context(), args[0], approveActor)
		if err != nil {
			if errors.Is(err, approval.ErrAlreadyProcessed) {
				return fmt.Errorf("draft %s was already handled", args[0])
			}
			return err
		}

		fmt.Printf("sent %q to %s\n", entry.Subject, entry.EmailTo)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <entry-id>",
	Short: "Send an edited version of a pending draft",
	Long: `Transmits the provided subject/body in place of the draft's content.
The original draft is preserved unchanged for audit and marked
edited_sent; the transmitted version is appended as its own entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		entry, err := a.gateway.EditAndSend(
			cmd.Context(), args[0], approveActor, editSubject, editBody,
		)
		if err != nil {
			if errors.Is(err, approval.ErrAlreadyProcessed) {
				return fmt.Errorf("draft %s was already handled", args[0])
			}
			return err
		}

		fmt.Printf("sent edited draft to %s\n", entry.EmailTo)
		return nil
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard <entry-id>",
	Short: "Reject a pending draft without sending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		if _, err := a.gateway.Discard(cmd.Context(), args[0], approveActor); err != nil {
			if errors.Is(err, approval.ErrAlreadyProcessed) {
				return fmt.Errorf("draft %s was already handled", args[0])
			}
			return err
		}

		fmt.Printf("discarded draft %s\n", args[0])
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <entry-id>",
	Short: "Retry sending a draft whose transmission failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		entry, err := a.gateway.Retry(cmd.Context(), args[0], approveActor)
		if err != nil {
			if errors.Is(err, approval.ErrAlreadyProcessed) {
				return fmt.Errorf("draft %s was already handled", args[0])
			}
			return err
		}

		fmt.Printf("sent %q to %s\n", entry.Subject, entry.EmailTo)
		return nil
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread <issue-id>",
	Short: "Show the full conversation for an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		entries, err := a.gateway.Thread(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("no conversation recorded for this issue")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("[%s] %s %s/%s: %s\n",
				e.Timestamp.Format("2006-01-02 15:04"),
				e.ID, e.Sender, e.Status, e.Subject)
			body := e.Body
			if len(body) > 200 {
				body = body[:200] + "…"
			}
			fmt.Printf("  %s\n", strings.ReplaceAll(body, "\n", "\n  "))
		}
		return nil
	},
}

func init() {
	pendingCmd.Flags().StringVar(&pendingIssueID, "issue", "",
		"restrict to one issue id")

	for _, c := range []*cobra.Command{approveCmd, editCmd, discardCmd, retryCmd} {
		c.Flags().StringVar(&approveActor, "by", "",
			"actor recorded on the approval")
		_ = c.MarkFlagRequired("by")
	}

	editCmd.Flags().StringVar(&editSubject, "subject", "",
		"replacement subject (empty keeps the draft's)")
	editCmd.Flags().StringVar(&editBody, "body", "",
		"replacement body")
	_ = editCmd.MarkFlagRequired("body")

	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(discardCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(threadCmd)
}
