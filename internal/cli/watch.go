package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mrcode/dexshare-widget/internal/engine"
	"github.com/mrcode/dexshare-widget/internal/logging"
	"github.com/mrcode/dexshare-widget/internal/share"
	"github.com/mrcode/dexshare-widget/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the live glucose widget in the terminal",
	Long: `Watch starts the polling engine and renders incoming readings as a
live terminal widget. Logs go to the log file under the config
directory because the widget owns the terminal.`,
	Example: `  dexshare watch`,
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	store := openStore()
	sess, err := loadSession(store)
	if err != nil {
		return err
	}
	vault, err := openVault()
	if err != nil {
		return err
	}

	fileLogger, err := logging.New(effectiveLogLevel(), "json", cfg.LogPath())
	if err != nil {
		return err
	}
	defer func() { _ = fileLogger.Sync() }()

	client := share.NewClient(vault, fileLogger, cfg.FetchTimeout)
	eng := engine.New(client, store, fileLogger, cfg.PollInterval)

	if err := eng.Start(sess); err != nil {
		return err
	}
	defer eng.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tui.Run(tui.Options{Context: ctx, Engine: eng})
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		// Terminated by signal, a normal way to leave the widget.
		return nil
	}
	return err
}
