package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrcode/dexshare-widget/internal/glucose"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Fetch and print the latest glucose reading",
	Example: `  dexshare status
  dexshare status --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the reading as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
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
	reading, err := client.Fetch(ctx, sess)
	if err != nil {
		if dexerr.IsKind(err, dexerr.KindNoData) {
			fmt.Fprintln(cmd.OutOrStdout(), "No recent readings available.")
			return nil
		}
		return err
	}

	if statusJSON {
		return printReadingJSON(cmd.OutOrStdout(), reading, sess.Unit, time.Now())
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatReading(reading, sess.Unit, time.Now()))
	return nil
}

// formatReading renders the one-line human summary, always carrying
// both units so the output is useful regardless of local preference.
func formatReading(r glucose.Reading, unit glucose.Unit, now time.Time) string {
	primary := glucose.FormatValue(r.Value, unit)
	secondary := glucose.FormatValue(r.Value, otherUnit(unit))
	severity := glucose.Classify(r.Value)
	staleness := glucose.StalenessOf(r.Timestamp, now)

	return fmt.Sprintf("%s (%s)  %s %s  [%s, %s]  %s",
		primary, secondary,
		r.Trend.Arrow(), r.Trend.Label(),
		severity, staleness,
		compactAge(r.Age(now)))
}

func otherUnit(unit glucose.Unit) glucose.Unit {
	if unit == glucose.UnitMmolL {
		return glucose.UnitMgDl
	}
	return glucose.UnitMmolL
}

// compactAge renders a short relative age like "now", "5m" or "2h".
func compactAge(d time.Duration) string {
	if d < time.Minute {
		return "now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

type readingJSON struct {
	ValueMgDl  int       `json:"value_mgdl"`
	ValueMmolL float64   `json:"value_mmoll"`
	Unit       string    `json:"unit"`
	Trend      string    `json:"trend"`
	Arrow      string    `json:"arrow"`
	Timestamp  time.Time `json:"timestamp"`
	AgeSeconds int       `json:"age_seconds"`
	Severity   string    `json:"severity"`
	Staleness  string    `json:"staleness"`
}

func printReadingJSON(w io.Writer, r glucose.Reading, unit glucose.Unit, now time.Time) error {
	out := readingJSON{
		ValueMgDl:  r.Value,
		ValueMmolL: r.MmolL(),
		Unit:       string(unit),
		Trend:      string(r.Trend),
		Arrow:      r.Trend.Arrow(),
		Timestamp:  r.Timestamp,
		AgeSeconds: int(r.Age(now).Seconds()),
		Severity:   string(glucose.Classify(r.Value)),
		Staleness:  string(glucose.StalenessOf(r.Timestamp, now)),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
