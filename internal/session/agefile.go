package session

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/google/uuid"

	"github.com/mrcode/dexshare-widget/internal/fileutil"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

const (
	identityFileName = "identity.txt"
	credsExtension   = ".age"
)

// FileVault keeps credentials in age-encrypted files for hosts without a
// usable OS keyring. A machine-local X25519 identity is generated on
// first use and stored next to the credential files with owner-only
// permissions; encryption happens with no passphrase prompt so the vault
// can open unattended.
type FileVault struct {
	dir      string
	identity *age.X25519Identity
}

// NewFileVault opens (or initializes) a file vault in dir.
func NewFileVault(dir string) (*FileVault, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, dexerr.Wrap(dexerr.KindConfig, "creating vault directory", err)
	}

	identity, err := loadOrCreateIdentity(filepath.Join(dir, identityFileName))
	if err != nil {
		return nil, err
	}
	return &FileVault{dir: dir, identity: identity}, nil
}

// Name implements Vault.
func (v *FileVault) Name() string { return "file" }

// Store implements Vault.
func (v *FileVault) Store(ref string, creds Credentials) error {
	path, err := v.credsPath(ref)
	if err != nil {
		return err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "encoding credentials", err)
	}

	ciphertext, err := encrypt(data, v.identity.Recipient())
	if err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "encrypting credentials", err)
	}
	if err := fileutil.WriteAtomic(path, ciphertext, 0o600); err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "writing credential file", err)
	}
	return nil
}

// Lookup implements Vault.
func (v *FileVault) Lookup(ref string) (Credentials, error) {
	path, err := v.credsPath(ref)
	if err != nil {
		return Credentials{}, err
	}

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, dexerr.New(dexerr.KindConfig, "no stored credentials for this account")
		}
		return Credentials{}, dexerr.Wrap(dexerr.KindConfig, "reading credential file", err)
	}

	data, err := decrypt(ciphertext, v.identity)
	if err != nil {
		return Credentials{}, dexerr.Wrap(dexerr.KindCorruptConfig, "decrypting credential file", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, dexerr.Wrap(dexerr.KindCorruptConfig, "stored credentials are not valid JSON", err)
	}
	return creds, nil
}

// Delete implements Vault.
func (v *FileVault) Delete(ref string) error {
	path, err := v.credsPath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return dexerr.Wrap(dexerr.KindConfig, "removing credential file", err)
	}
	return nil
}

// credsPath validates the reference before using it as a file name.
// References are UUIDs, so anything else is rejected at the boundary.
func (v *FileVault) credsPath(ref string) (string, error) {
	if err := uuid.Validate(ref); err != nil {
		return "", dexerr.Newf(dexerr.KindConfig, "invalid account reference %q", ref)
	}
	return filepath.Join(v.dir, ref+credsExtension), nil
}

func loadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		identity, parseErr := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if parseErr != nil {
			return nil, dexerr.Wrap(dexerr.KindCorruptConfig, "parsing vault identity file", parseErr)
		}
		return identity, nil
	}
	if !os.IsNotExist(err) {
		return nil, dexerr.Wrap(dexerr.KindConfig, "reading vault identity file", err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, dexerr.Wrap(dexerr.KindConfig, "generating vault identity", err)
	}
	if err := fileutil.WriteAtomic(path, []byte(identity.String()+"\n"), 0o600); err != nil {
		return nil, dexerr.Wrap(dexerr.KindConfig, "writing vault identity file", err)
	}
	return identity, nil
}

func encrypt(plaintext []byte, recipient age.Recipient) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decrypt(ciphertext []byte, identity age.Identity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
