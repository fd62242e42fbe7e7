package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrcode/dexshare-widget/internal/badge"
	"github.com/mrcode/dexshare-widget/internal/engine"
	"github.com/mrcode/dexshare-widget/internal/glucose"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

var (
	badgeOut  string
	badgeSize int
)

var badgeCmd = &cobra.Command{
	Use:   "badge",
	Short: "Render the latest reading as a badge image",
	Long: `Badge fetches the latest reading and renders it as a small square
image for taskbars and desktop widgets. The output format follows the
file extension: .ico produces a Windows icon, anything else a PNG.

When the service has no recent readings the badge still renders, as a
gray placeholder.`,
	Example: `  dexshare badge
  dexshare badge -o glucose.ico --size 32`,
	RunE: runBadge,
}

func init() {
	badgeCmd.Flags().StringVarP(&badgeOut, "out", "o", "badge.png", "output file (.png or .ico)")
	badgeCmd.Flags().IntVar(&badgeSize, "size", 0, "badge size in pixels (defaults to config)")
	rootCmd.AddCommand(badgeCmd)
}

func runBadge(cmd *cobra.Command, _ []string) error {
	store := openStore()
	sess, err := loadSession(store)
	if err != nil {
		return err
	}
	vault, err := openVault()
	if err != nil {
		return err
	}
	client := newShareClient(vault)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout)
	defer cancel()

	st := engine.DisplayState{
		State:    engine.StateSuccess,
		Severity: glucose.SeverityUnknown,
		Unit:     sess.Unit,
	}
	reading, err := client.Fetch(ctx, sess)
	switch {
	case err == nil:
		st.Reading = &reading
		st.Severity = glucose.Classify(reading.Value)
		st.Staleness = glucose.StalenessOf(reading.Timestamp, time.Now())
	case dexerr.IsKind(err, dexerr.KindNoData):
		st.State = engine.StateFailure
		st.ErrorKind = engine.ErrorNoData
	default:
		return err
	}

	size := badgeSize
	if size <= 0 {
		size = cfg.BadgeSize
	}
	renderer, err := badge.NewRenderer(size)
	if err != nil {
		return err
	}

	var data []byte
	if strings.EqualFold(filepath.Ext(badgeOut), ".ico") {
		data, err = renderer.RenderICO(st)
	} else {
		data, err = renderer.Render(st)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(badgeOut, data, 0o644); err != nil {
		return fmt.Errorf("writing badge: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d).\n", badgeOut, size, size)
	return nil
}
