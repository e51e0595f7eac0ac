// Package cli wires the cobra command surface for vendormail.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/avion00/buy2rent-vendormail/internal/ai"
	"github.com/avion00/buy2rent-vendormail/internal/approval"
	"github.com/avion00/buy2rent-vendormail/internal/credential"
	"github.com/avion00/buy2rent-vendormail/internal/mail"
	"github.com/avion00/buy2rent-vendormail/internal/model"
	"github.com/avion00/buy2rent-vendormail/internal/monitor"
	"github.com/avion00/buy2rent-vendormail/internal/store"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vendormail",
	Short: "Vendor issue-resolution email workflow",
	Long: `vendormail runs the email half of the procurement issue-resolution
workflow: it opens AI-drafted conversations with vendors when an issue is
raised, polls the shared mailbox for their replies, correlates each reply
back to its issue, and holds AI-drafted responses in a human approval
queue until an operator sends, edits, or discards them.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vendormail %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(),
		"path to the configuration file",
	)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app bundles the constructed services for one command invocation.
// Everything is built once here and passed by reference; there is no
// package-level client state.
type app struct {
	cfg      *model.AppConfig
	store    *store.SQLiteStore
	mail     *mail.Client
	analyzer *ai.Client
	monitor  *monitor.Monitor
	gateway  *approval.Gateway
	logger   *slog.Logger
}

// newApp loads configuration, resolves credentials, and constructs the
// service graph. The returned cleanup must run on every exit path.
func newApp() (*app, func(), error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	// Empty secrets in the config fall back to the OS keyring.
	if cfg.Mail.Password == "" {
		if pw, err := credential.Get(credential.KeyMailPassword); err == nil {
			cfg.Mail.Password = pw
		}
	}
	if cfg.AI.APIKey == "" {
		if key, err := credential.Get(credential.KeyAIAPIKey); err == nil {
			cfg.AI.APIKey = key
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	mailClient := mail.NewClient(cfg.Mail, logger)
	analyzer := ai.NewClient(cfg.AI)

	mon := monitor.New(s, s, mailClient, analyzer, cfg.Mail.Username, logger)
	gw := approval.New(s, mailClient, logger)

	cleanup := func() {
		if err := s.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}

	return &app{
		cfg:      cfg,
		store:    s,
		mail:     mailClient,
		analyzer: analyzer,
		monitor:  mon,
		gateway:  gw,
		logger:   logger,
	}, cleanup, nil
}
