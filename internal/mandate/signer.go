package mandate

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/viper"

	"github.com/jcgs2503/vestbridge/internal/errors"
)

// Signature metadata keys embedded in a signed mandate file. They are
// stripped before hashing or signature verification.
const (
	sigKeySignature = "_signature"
	sigKeySignedAt  = "_signed_at"
	sigKeySignedBy  = "_signed_by"
)

// canonicalBytes serializes a mandate map deterministically: keys sorted,
// stable number formatting via encoding/json.
func canonicalBytes(raw map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]interface{}, len(raw))
	for _, k := range keys {
		ordered[k] = raw[k]
	}
	// encoding/json sorts map keys, which gives the canonical form directly.
	return json.Marshal(ordered)
}

// OwnerFingerprint returns the "owner:<sha256 hex>" fingerprint of an owner
// public key.
func OwnerFingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "owner:" + hex.EncodeToString(sum[:])
}

// Sign signs a mandate YAML file in place with the owner's private key.
// Existing signature fields are stripped before signing so re-signing is
// idempotent. The file is left read-only afterwards.
func Sign(path string, priv ed25519.PrivateKey, signedAt string) error {
	raw, err := readMandateMap(path)
	if err != nil {
		return err
	}

	delete(raw, sigKeySignature)
	delete(raw, sigKeySignedAt)
	delete(raw, sigKeySignedBy)

	payload, err := canonicalBytes(raw)
	if err != nil {
		return errors.Wrap(err, "serializing mandate for signing")
	}
	sig := ed25519.Sign(priv, payload)

	raw[sigKeySignature] = "ed25519:" + hex.EncodeToString(sig)
	raw[sigKeySignedAt] = signedAt
	raw[sigKeySignedBy] = OwnerFingerprint(priv.Public().(ed25519.PublicKey))

	if err := os.Chmod(path, 0644); err != nil {
		return errors.Wrapf(err, "making mandate writable %s", path)
	}
	if err := writeMandateMap(path, raw); err != nil {
		return err
	}
	return os.Chmod(path, 0444)
}

// VerifySignature checks a mandate file's embedded signature against the
// owner's public key.
func VerifySignature(path string, pub ed25519.PublicKey) error {
	raw, err := readMandateMap(path)
	if err != nil {
		return err
	}

	sigValue, ok := raw[sigKeySignature].(string)
	if !ok || sigValue == "" {
		return errors.NewSignatureError(mandateIDOf(raw), "mandate is not signed")
	}
	delete(raw, sigKeySignature)
	delete(raw, sigKeySignedAt)
	delete(raw, sigKeySignedBy)

	sigHex := sigValue
	if len(sigHex) > len("ed25519:") && sigHex[:len("ed25519:")] == "ed25519:" {
		sigHex = sigHex[len("ed25519:"):]
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return errors.NewSignatureError(mandateIDOf(raw), "malformed signature encoding")
	}

	payload, err := canonicalBytes(raw)
	if err != nil {
		return errors.Wrap(err, "serializing mandate for verification")
	}
	if !ed25519.Verify(pub, payload, sig) {
		return errors.NewSignatureError(mandateIDOf(raw), "signature does not match mandate contents")
	}
	return nil
}

func mandateIDOf(raw map[string]interface{}) string {
	if id, ok := raw["mandate_id"].(string); ok {
		return id
	}
	return "unknown"
}

func readMandateMap(path string) (map[string]interface{}, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading mandate %s", path)
	}
	return v.AllSettings(), nil
}

func writeMandateMap(path string, raw map[string]interface{}) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for k, val := range raw {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return errors.Wrapf(err, "writing mandate %s", path)
	}
	return nil
}

// GenerateOwnerKey creates a new Ed25519 owner keypair and writes it to the
// given paths with restrictive permissions.
func GenerateOwnerKey(privPath, pubPath string) (ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "generating owner key")
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(priv)), 0600); err != nil {
		return nil, errors.Wrapf(err, "writing private key %s", privPath)
	}
	if err := os.WriteFile(pubPath, []byte(hex.EncodeToString(pub)), 0644); err != nil {
		return nil, errors.Wrapf(err, "writing public key %s", pubPath)
	}
	return pub, nil
}

// LoadOwnerKey reads a hex-encoded Ed25519 private key from disk.
func LoadOwnerKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading owner key %s", path)
	}
	raw, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding owner key")
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("owner key has wrong length: %d", len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

// LoadOwnerPublicKey reads a hex-encoded Ed25519 public key from disk.
func LoadOwnerPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading owner public key %s", path)
	}
	raw, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding owner public key")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("owner public key has wrong length: %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
