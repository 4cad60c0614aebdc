// Package credential stores the generation API key sealed at rest and
// resolves the key to use: the user's own key when present, else the
// configured default.
package credential

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"feedsim/internal/logging"
	"feedsim/internal/metrics"
	"feedsim/internal/persist"
)

const Key = "@credential/generation_api_key"

const (
	saltLen    = 16
	argonTime  = 1
	argonMem   = 64 * 1024
	argonLanes = 4
)

var (
	ErrEmptyKey   = errors.New("credential: empty key")
	ErrInvalidKey = errors.New("credential: key rejected by provider")
	errSealed     = errors.New("credential: malformed sealed value")
)

// Validator checks a candidate key against the provider.
type Validator interface {
	ValidateKey(ctx context.Context, key string) error
}

type Options struct {
	Passphrase string // seals the stored key; empty uses a built-in value
	DefaultKey string
	Validator  Validator
}

type Service struct {
	a          persist.Adapter
	passphrase []byte
	defaultKey string
	validator  Validator

	mu     sync.Mutex
	cached string
	loaded bool
}

func New(a persist.Adapter, opts Options) *Service {
	pass := opts.Passphrase
	if pass == "" {
		pass = "feedsim-local"
	}
	return &Service{
		a:          a,
		passphrase: []byte(pass),
		defaultKey: strings.TrimSpace(opts.DefaultKey),
		validator:  opts.Validator,
	}
}

// SetValidator wires the validator after construction; the generation
// backend needs the service as its key source first.
func (s *Service) SetValidator(v Validator) {
	s.mu.Lock()
	s.validator = v
	s.mu.Unlock()
}

// Get returns the user's key, or the default when none is stored or the
// stored value cannot be read.
func (s *Service) Get(ctx context.Context) string {
	if k := s.userKey(ctx); k != "" {
		return k
	}
	return s.defaultKey
}

// HasUserKey reports whether a readable user key is stored.
func (s *Service) HasUserKey(ctx context.Context) bool { return s.userKey(ctx) != "" }

// Source names where Get's key comes from: "user", "default" or "none".
func (s *Service) Source(ctx context.Context) string {
	switch {
	case s.HasUserKey(ctx):
		return "user"
	case s.defaultKey != "":
		return "default"
	default:
		return "none"
	}
}

func (s *Service) userKey(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached
	}
	raw, ok, err := s.a.Get(ctx, Key)
	if err != nil {
		metrics.IncPersistError("credential_get")
		logging.Error("credential_read_failed", map[string]any{"error": err.Error()})
		return ""
	}
	s.loaded = true
	s.cached = ""
	if !ok || raw == "" {
		return ""
	}
	plain, err := s.open(raw)
	if err != nil {
		logging.Error("credential_unseal_failed", map[string]any{"error": err.Error()})
		return ""
	}
	s.cached = plain
	return plain
}

// Save seals and stores key.
func (s *Service) Save(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	sealed, err := s.seal(key)
	if err != nil {
		return err
	}
	if err := s.a.Set(ctx, Key, sealed); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	s.mu.Lock()
	s.cached, s.loaded = key, true
	s.mu.Unlock()
	return nil
}

// Delete removes the user key; Get falls back to the default afterwards.
func (s *Service) Delete(ctx context.Context) error {
	if err := s.a.Delete(ctx, Key); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	s.mu.Lock()
	s.cached, s.loaded = "", true
	s.mu.Unlock()
	return nil
}

// Validate makes a minimal generation call with candidate.
func (s *Service) Validate(ctx context.Context, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	s.mu.Lock()
	v := s.validator
	s.mu.Unlock()
	if candidate == "" || v == nil {
		return false
	}
	if err := v.ValidateKey(ctx, candidate); err != nil {
		logging.Warn("credential_validation_failed", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

// SaveValidated stores candidate only if the provider accepts it.
func (s *Service) SaveValidated(ctx context.Context, candidate string) error {
	if strings.TrimSpace(candidate) == "" {
		return ErrEmptyKey
	}
	if !s.Validate(ctx, candidate) {
		return ErrInvalidKey
	}
	return s.Save(ctx, candidate)
}

// sealed layout: base64(salt | nonce | ciphertext)
func (s *Service) seal(plain string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(s.derive(salt))
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := append(salt, nonce...)
	out = aead.Seal(out, nonce, []byte(plain), []byte(Key))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Service) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errSealed, err)
	}
	if len(raw) < saltLen+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", errSealed
	}
	salt, rest := raw[:saltLen], raw[saltLen:]
	aead, err := chacha20poly1305.NewX(s.derive(salt))
	if err != nil {
		return "", err
	}
	nonce, ct := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, []byte(Key))
	if err != nil {
		return "", fmt.Errorf("open credential: %w", err)
	}
	return string(plain), nil
}

func (s *Service) derive(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, argonTime, argonMem, argonLanes, chacha20poly1305.KeySize)
}
