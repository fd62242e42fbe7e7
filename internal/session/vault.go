package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/zalando/go-keyring"

	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

// serviceName identifies this application's entries in the OS keyring.
const serviceName = "dexshare-widget"

// Credentials is a share account login. It lives only in the vault and in
// memory during a fetch; it is never written to the session file or logs.
type Credentials struct {
	AccountName string `json:"account_name"`
	Password    string `json:"password"`
}

// Vault stores credentials keyed by the session's opaque account
// reference.
type Vault interface {
	// Name identifies the backend for status output.
	Name() string
	Store(ref string, creds Credentials) error
	Lookup(ref string) (Credentials, error)
	Delete(ref string) error
}

// KeyringVault keeps credentials in the OS keyring.
type KeyringVault struct{}

// NewKeyringVault returns a vault backed by the OS keyring.
func NewKeyringVault() *KeyringVault {
	return &KeyringVault{}
}

// Name implements Vault.
func (v *KeyringVault) Name() string { return "keyring" }

// Store implements Vault.
func (v *KeyringVault) Store(ref string, creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "encoding credentials", err)
	}
	if err := keyring.Set(serviceName, ref, string(data)); err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "storing credentials in keyring", err)
	}
	return nil
}

// Lookup implements Vault.
func (v *KeyringVault) Lookup(ref string) (Credentials, error) {
	raw, err := keyring.Get(serviceName, ref)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Credentials{}, dexerr.New(dexerr.KindConfig, "no stored credentials for this account")
		}
		return Credentials{}, dexerr.Wrap(dexerr.KindConfig, "reading credentials from keyring", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return Credentials{}, dexerr.Wrap(dexerr.KindCorruptConfig, "stored credentials are not valid JSON", err)
	}
	return creds, nil
}

// Delete implements Vault.
func (v *KeyringVault) Delete(ref string) error {
	if err := keyring.Delete(serviceName, ref); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return dexerr.Wrap(dexerr.KindConfig, "removing credentials from keyring", err)
	}
	return nil
}

// probeTimeout bounds the keyring availability probe so startup does not
// hang when the OS keyring daemon is unresponsive.
const probeTimeout = 3 * time.Second

// probeKeyring tests whether the OS keyring round-trips a value.
func probeKeyring() bool {
	ch := make(chan bool, 1)
	go func() {
		ch <- probeKeyringSync()
	}()

	select {
	case result := <-ch:
		return result
	case <-time.After(probeTimeout):
		return false
	}
}

func probeKeyringSync() bool {
	const (
		testService = "dexshare-probe"
		testUser    = "probe"
		testValue   = "test"
	)

	if err := keyring.Set(testService, testUser, testValue); err != nil {
		return false
	}
	val, err := keyring.Get(testService, testUser)
	if err != nil || val != testValue {
		_ = keyring.Delete(testService, testUser)
		return false
	}
	if err := keyring.Delete(testService, testUser); err != nil {
		return false
	}
	return true
}

// Open selects a vault backend. "keyring" and "file" pin the backend;
// "auto" (or empty) probes the OS keyring and falls back to the encrypted
// file vault when the keyring is unavailable. dir is the directory the
// file vault lives in.
func Open(backend, dir string) (Vault, error) {
	switch backend {
	case "keyring":
		return NewKeyringVault(), nil
	case "file":
		return NewFileVault(dir)
	case "auto", "":
		if probeKeyring() {
			return NewKeyringVault(), nil
		}
		return NewFileVault(dir)
	default:
		return nil, dexerr.Newf(dexerr.KindConfig, "unknown vault backend %q (expected auto, keyring or file)", backend)
	}
}
