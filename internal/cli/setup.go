package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrcode/dexshare-widget/internal/glucose"
	"github.com/mrcode/dexshare-widget/internal/session"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

var (
	setupRegion string
	setupUnit   string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Store and verify Dexcom Share credentials",
	Long: `Setup prompts for your Dexcom Share account, verifies it against the
service and stores the credentials in the configured vault. The
password itself never touches the session file on disk.

Each run issues a fresh local account reference and retires the
previous vault entry, so a rejected or replaced password is never left
behind. Display preferences carry over.`,
	Example: `  dexshare setup
  dexshare setup --region ous --unit mmol/L`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupRegion, "region", "", "share region: us, ous or jp (prompted when omitted)")
	setupCmd.Flags().StringVar(&setupUnit, "unit", "", "display unit: mg/dL or mmol/L")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	region, err := resolveRegion(setupRegion)
	if err != nil {
		return err
	}

	accountName, err := promptLine("Dexcom Share account name: ")
	if err != nil {
		return err
	}
	if accountName == "" {
		return dexerr.New(dexerr.KindConfig, "account name is required")
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return dexerr.New(dexerr.KindConfig, "password is required")
	}

	creds := session.Credentials{AccountName: accountName, Password: password}

	vault, err := openVault()
	if err != nil {
		return err
	}
	client := newShareClient(vault)

	fmt.Fprintln(cmd.ErrOrStderr(), "Verifying credentials...")
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout)
	defer cancel()
	if err := client.VerifyCredentials(ctx, region, creds); err != nil {
		return err
	}

	store := openStore()
	existing, err := loadPriorSession(store)
	if err != nil {
		return err
	}
	sess := rotatedSession(existing, uuid.NewString(), region)
	if setupUnit != "" {
		unit, err := glucose.ParseUnit(setupUnit)
		if err != nil {
			return dexerr.Wrap(dexerr.KindConfig, "unrecognized unit", err)
		}
		sess.Unit = unit
	}

	if err := vault.Store(sess.AccountRef, creds); err != nil {
		return err
	}
	if err := store.Save(sess); err != nil {
		_ = vault.Delete(sess.AccountRef)
		return err
	}
	if existing != nil && existing.AccountRef != sess.AccountRef {
		_ = vault.Delete(existing.AccountRef)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Credentials verified and stored (region %s, unit %s).\n", sess.Region, sess.Unit)
	return nil
}

// loadPriorSession returns the previous session if one is readable. A
// corrupt session file is replaced rather than blocking re-setup.
func loadPriorSession(store *session.Store) (*session.Session, error) {
	existing, err := store.Load()
	if err != nil {
		if dexerr.KindOf(err) != dexerr.KindCorruptConfig {
			return nil, err
		}
		return nil, nil
	}
	return existing, nil
}

// rotatedSession builds the session to persist. The account reference
// is always freshly generated so the old vault entry can be retired;
// display preferences carry over from any prior session.
func rotatedSession(existing *session.Session, newRef string, region session.Region) *session.Session {
	sess := session.New(newRef, region)
	if existing != nil {
		prior := existing.Clone()
		sess.Unit = prior.Unit
		sess.WidgetPosition = prior.WidgetPosition
	}
	return sess
}

func resolveRegion(flag string) (session.Region, error) {
	raw := strings.TrimSpace(flag)
	if raw == "" {
		line, err := promptLine("Region [us/ous/jp] (default us): ")
		if err != nil {
			return "", err
		}
		raw = line
	}
	if raw == "" {
		return session.RegionUS, nil
	}
	region, err := session.ParseRegion(raw)
	if err != nil {
		return "", dexerr.Wrap(dexerr.KindConfig, "unrecognized region", err)
	}
	return region, nil
}

// promptLine reads one trimmed line from stdin, prompting on stderr so
// piped stdout stays clean.
func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password with terminal echo disabled.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}
