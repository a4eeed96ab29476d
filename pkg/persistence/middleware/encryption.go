package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/lattice/pkg/ports"
)

// EnvelopeKey is the only key of an encrypted output as seen by the wrapped store.
const EnvelopeKey = "__encrypted__"

// ErrNotEncrypted is returned by Load when the stored output carries no envelope.
var ErrNotEncrypted = errors.New("output is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt.
	FallbackKeys [][]byte
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes (AES-256), got %d", len(key))
	}
	return key, nil
}

type encryptionMiddleware struct {
	next   ports.OutputStore
	config EncryptionConfig
}

// NewEncryptionMiddleware returns a middleware that stores every output as an
// AES-GCM sealed envelope.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i)
		}
	}
	return func(next ports.OutputStore) ports.OutputStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, graphID, nodeID string, output map[string]any) error {
	plain, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	// The node id is bound as additional data so an envelope cannot be
	// replayed under another node.
	sealed, err := encrypt(plain, m.config.ActiveKey, aad(graphID, nodeID))
	if err != nil {
		return fmt.Errorf("failed to encrypt output: %w", err)
	}
	return m.next.Save(ctx, graphID, nodeID, map[string]any{
		EnvelopeKey: base64.StdEncoding.EncodeToString(sealed),
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, graphID, nodeID string) (map[string]any, error) {
	envelope, err := m.next.Load(ctx, graphID, nodeID)
	if err != nil {
		return nil, err
	}
	encoded, ok := envelope[EnvelopeKey].(string)
	if !ok {
		return nil, ErrNotEncrypted
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plain, err := decryptWithRotation(sealed, aad(graphID, nodeID), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt output: %w", err)
	}
	var output map[string]any
	if err := json.Unmarshal(plain, &output); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted output: %w", err)
	}
	return output, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, graphID, nodeID string) error {
	return m.next.Delete(ctx, graphID, nodeID)
}

func (m *encryptionMiddleware) List(ctx context.Context, graphID string) ([]string, error) {
	return m.next.List(ctx, graphID)
}

func aad(graphID, nodeID string) []byte {
	return []byte(graphID + "\x00" + nodeID)
}

func encrypt(plaintext, key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, data), nil
}

func decryptWithRotation(ciphertext, data, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey, data); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key, data); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, data)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
