package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrcode/dexshare-widget/internal/glucose"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

var unitCmd = &cobra.Command{
	Use:   "unit [mg/dL|mmol/L]",
	Short: "Show or change the display unit",
	Long: `Without an argument, unit prints the current display unit. With one,
it updates the session so future readings display in that unit. Stored
readings are always mg/dL internally, so switching is lossless.`,
	Example: `  dexshare unit
  dexshare unit mmol/L`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUnit,
}

func init() {
	rootCmd.AddCommand(unitCmd)
}

func runUnit(cmd *cobra.Command, args []string) error {
	store := openStore()
	sess, err := loadSession(store)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), string(sess.Unit))
		return nil
	}

	unit, err := glucose.ParseUnit(args[0])
	if err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "unrecognized unit", err)
	}
	sess.Unit = unit
	if err := store.Save(sess); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Display unit set to %s.\n", unit)
	return nil
}
