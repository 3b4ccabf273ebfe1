package studybuddy

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	rsaKeyBits = 2048

	// The private key is keyed like the browser client's IndexedDB
	// record; the published flag marks a completed directory write.
	privateKeyEntry   = "privateKey"
	publishedKeyEntry = "publishedKey"
)

// KeyStore owns the client's keypair. The private key is persisted in a
// scoped key-value file under the install's config directory and never
// leaves it; only the derived public key is published to the directory.
type KeyStore struct {
	dir       string
	publisher KeyPublisher
}

// KeyPublisher publishes a public key to the directory service. Satisfied
// by *Client.
type KeyPublisher interface {
	PublishPublicKey(ctx context.Context, publicKeyB64 string) error
}

// NewKeyStore creates a key store rooted at dir. If dir is empty it
// defaults to ~/.studybuddy.
func NewKeyStore(dir string, publisher KeyPublisher) *KeyStore {
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".studybuddy")
	}
	return &KeyStore{dir: dir, publisher: publisher}
}

// EnsureKeypair makes sure this install has a keypair and that its public
// half is in the directory. Idempotent: once a private key exists the
// call is a no-op. Generation failure returns a KeygenError; a failed
// directory write returns a PublishError but keeps the generated key, so
// the next call retries only the publish.
func (k *KeyStore) EnsureKeypair(ctx context.Context) error {
	priv, ok := k.PrivateKey()
	if ok {
		if _, done := k.get(publishedKeyEntry); done {
			return nil
		}
		return k.publish(ctx, priv)
	}

	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return &KeygenError{Err: err}
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return &KeygenError{Err: err}
	}
	if err := k.put(privateKeyEntry, base64.StdEncoding.EncodeToString(der)); err != nil {
		return &KeygenError{Err: err}
	}

	return k.publish(ctx, priv)
}

// publish uploads the public half of the stored key to the directory and
// records the completed write.
func (k *KeyStore) publish(ctx context.Context, priv *rsa.PrivateKey) error {
	pubB64, err := MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return &PublishError{Err: err}
	}
	if err := k.publisher.PublishPublicKey(ctx, pubB64); err != nil {
		return &PublishError{Err: err}
	}
	return k.put(publishedKeyEntry, pubB64)
}

// PrivateKey returns the locally stored private key, or false if none
// has been generated yet.
func (k *KeyStore) PrivateKey() (*rsa.PrivateKey, bool) {
	encoded, ok := k.get(privateKeyEntry)
	if !ok {
		return nil, false
	}

	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, false
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, false
	}
	return priv, true
}

// PublicKeyB64 returns the directory wire form of the stored key's public
// half. Senders wrap their own copy of each message key with this cached
// value instead of re-fetching it from the directory.
func (k *KeyStore) PublicKeyB64() (string, bool) {
	priv, ok := k.PrivateKey()
	if !ok {
		return "", false
	}
	pubB64, err := MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return "", false
	}
	return pubB64, true
}

// keysFile is the scoped key-value store: one JSON object per install.
func (k *KeyStore) keysFile() string {
	return filepath.Join(k.dir, "keys.json")
}

func (k *KeyStore) load() map[string]string {
	entries := make(map[string]string)
	data, err := os.ReadFile(k.keysFile())
	if err != nil {
		return entries
	}
	_ = json.Unmarshal(data, &entries)
	return entries
}

func (k *KeyStore) get(name string) (string, bool) {
	value, ok := k.load()[name]
	return value, ok && value != ""
}

func (k *KeyStore) put(name, value string) error {
	if err := os.MkdirAll(k.dir, 0700); err != nil {
		return err
	}
	entries := k.load()
	entries[name] = value
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(k.keysFile(), data, 0600)
}
