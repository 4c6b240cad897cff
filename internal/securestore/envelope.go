// Package securestore seals the persisted security document at rest.
//
// A sealed payload is a fixed prefix line followed by a JSON envelope that
// carries the argon2id parameters, salt, nonce and XChaCha20-Poly1305
// ciphertext. Payloads without the prefix are reported as ErrPlaintext so
// callers can accept documents written before a secret was configured.
package securestore

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	version    = 1
	kdfName    = "argon2id"
	saltSize   = 16
	kdfTime    = 2
	kdfMemory  = 64 * 1024
	kdfThreads = 1
)

var prefix = []byte("SECLDG1\n")

var (
	ErrAuthFailed = errors.New("securestore: authentication failed")
	ErrInvalid    = errors.New("securestore: invalid envelope")
	ErrPlaintext  = errors.New("securestore: payload is not sealed")
)

type envelope struct {
	Version    uint32 `json:"version"`
	KDF        string `json:"kdf"`
	Time       uint32 `json:"kdf_time"`
	MemoryKB   uint32 `json:"kdf_memory_kb"`
	Threads    uint8  `json:"kdf_threads"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// IsSealed reports whether data starts with the envelope prefix.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, prefix)
}

// deriveKey is replaced in tests.
var deriveKey = func(secret, salt []byte, time, memory uint32, threads uint8) []byte {
	return argon2.IDKey(secret, salt, time, memory, threads, chacha20poly1305.KeySize)
}

// Sealer seals and opens payloads with one secret. Derived keys are cached
// per salt and KDF parameters. Seals reuse a single salt with a fresh nonce.
type Sealer struct {
	secret string

	mu   sync.Mutex
	salt []byte
	keys map[string][]byte
}

// NewSealer returns a Sealer for secret.
func NewSealer(secret string) *Sealer {
	return &Sealer{secret: secret, keys: map[string][]byte{}}
}

func (s *Sealer) key(salt []byte, time, memory uint32, threads uint8) []byte {
	id := fmt.Sprintf("%x/%d/%d/%d", salt, time, memory, threads)
	if k, ok := s.keys[id]; ok {
		return k
	}
	k := deriveKey([]byte(s.secret), salt, time, memory, threads)
	s.keys[id] = k
	return k
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s.secret == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.salt == nil {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		s.salt = salt
	}

	aead, err := chacha20poly1305.NewX(s.key(s.salt, kdfTime, kdfMemory, kdfThreads))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(envelope{
		Version:    version,
		KDF:        kdfName,
		Time:       kdfTime,
		MemoryKB:   kdfMemory,
		Threads:    kdfThreads,
		Salt:       s.salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	})
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, prefix...), raw...), nil
}

// Open reverses Seal. It returns ErrPlaintext when data was never sealed.
// A payload sealed elsewhere with the current KDF parameters lends its salt
// to later seals.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if !IsSealed(data) {
		return nil, ErrPlaintext
	}

	var env envelope
	if err := json.Unmarshal(data[len(prefix):], &env); err != nil {
		return nil, ErrInvalid
	}
	if env.Version != version || env.KDF != kdfName || env.Threads == 0 || len(env.Salt) == 0 {
		return nil, ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	aead, err := chacha20poly1305.NewX(s.key(env.Salt, env.Time, env.MemoryKB, env.Threads))
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrInvalid
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	if s.salt == nil && env.Time == kdfTime && env.MemoryKB == kdfMemory && env.Threads == kdfThreads {
		s.salt = append([]byte{}, env.Salt...)
	}
	return plaintext, nil
}

// Seal encrypts plaintext with a key derived from secret.
func Seal(secret string, plaintext []byte) ([]byte, error) {
	return NewSealer(secret).Seal(plaintext)
}

// Open reverses Seal.
func Open(secret string, data []byte) ([]byte, error) {
	return NewSealer(secret).Open(data)
}
