// Package cli implements the dexshare command-line interface.
//
// Commands live in package-level variables and register themselves in
// init, the usual Cobra layout. Shared state (config, logger) is
// prepared once in PersistentPreRunE.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrcode/dexshare-widget/internal/config"
	"github.com/mrcode/dexshare-widget/internal/logging"
	"github.com/mrcode/dexshare-widget/internal/session"
	"github.com/mrcode/dexshare-widget/internal/share"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

var (
	// Global flags
	cfgPath  string
	logLevel string
	verbose  bool

	// Global state initialized in PersistentPreRunE
	cfg    config.Config
	logger *zap.Logger
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dexshare",
	Short: "Desktop glucose widget backed by Dexcom Share",
	Long: `Dexshare polls the Dexcom Share service for the latest glucose
reading and shows it as a live terminal widget, a one-shot status line
or a rendered badge image.

Example:
  dexshare setup
  dexshare status
  dexshare watch`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// initGlobals loads the configuration and builds the logger.
func initGlobals() error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger, err = logging.New(effectiveLogLevel(), cfg.LogFormat)
	if err != nil {
		return err
	}
	return nil
}

// effectiveLogLevel resolves flag precedence: an explicit --log-level
// wins, then --verbose, then the config file.
func effectiveLogLevel() string {
	if logLevel != "" {
		return logLevel
	}
	if verbose {
		return "debug"
	}
	return cfg.LogLevel
}

// openStore returns the session store at the configured path.
func openStore() *session.Store {
	return session.NewStore(cfg.SessionPath())
}

// openVault opens the configured credential vault.
func openVault() (session.Vault, error) {
	return session.Open(cfg.VaultBackend, cfg.VaultDir())
}

// newShareClient builds a share client over the vault using the
// process-wide logger.
func newShareClient(vault session.Vault) *share.Client {
	return share.NewClient(vault, logger, cfg.FetchTimeout)
}

// loadSession loads the persisted session, translating the first-run
// case into guidance instead of a bare nil.
func loadSession(store *session.Store) (*session.Session, error) {
	sess, err := store.Load()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, dexerr.New(dexerr.KindConfig, `no account configured, run "dexshare setup" first`)
	}
	return sess, nil
}

func init() {
	rootCmd.Version = formatVersion()
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "shorthand for --log-level debug")
}
