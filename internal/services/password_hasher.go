package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"account-service/internal/apperrors"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

type HasherConfig struct {
	Algorithm  string
	BcryptCost int
	Workers    int
	Argon2     Argon2Params
}

type Argon2Params struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

var DefaultArgon2Params = Argon2Params{
	Memory:  64 * 1024,
	Time:    1,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

var errMalformedDigest = errors.New("malformed password digest")

// PasswordHasher hashes and verifies passwords. At most Workers hashes run at
// once; waiting callers give up when their context ends.
type PasswordHasher struct {
	algorithm  string
	bcryptCost int
	argon      Argon2Params
	sem        *semaphore.Weighted
	dummy      string
	logger     zerolog.Logger
}

func NewPasswordHasher(cfg HasherConfig, logger zerolog.Logger) (*PasswordHasher, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmBcrypt
	}
	if cfg.Algorithm != AlgorithmBcrypt && cfg.Algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("unknown password hasher %q", cfg.Algorithm)
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Argon2.KeyLen == 0 {
		cfg.Argon2 = DefaultArgon2Params
	}

	h := &PasswordHasher{
		algorithm:  cfg.Algorithm,
		bcryptCost: cfg.BcryptCost,
		argon:      cfg.Argon2,
		sem:        semaphore.NewWeighted(int64(cfg.Workers)),
		logger:     logger,
	}

	// Digest for a password nobody knows, verified when an account does not
	// exist so that login timing stays the same.
	dummy, err := h.hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("failed to build dummy digest: %w", err)
	}
	h.dummy = dummy
	return h, nil
}

func (h *PasswordHasher) Algorithm() string {
	return h.algorithm
}

func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	digest, err := h.hash(plaintext)
	if err != nil {
		h.logger.Error().Err(err).Str("algorithm", h.algorithm).Msg("Error hashing password")
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return digest, nil
}

// Verify reports whether plaintext matches digest. The algorithm is taken
// from the digest, so bcrypt and argon2id digests both verify regardless of
// the configured algorithm.
func (h *PasswordHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	ok, err := verifyDigest(plaintext, digest)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Unverifiable password digest")
		return false, nil
	}
	return ok, nil
}

// VerifyDummy spends the same work as Verify and always fails.
func (h *PasswordHasher) VerifyDummy(ctx context.Context, plaintext string) {
	_, _ = h.Verify(ctx, plaintext, h.dummy)
}

// NeedsRehash reports whether digest was produced with other settings than
// the configured ones.
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	switch h.algorithm {
	case AlgorithmArgon2id:
		p, _, _, err := decodeArgon2(digest)
		return err != nil || p.Memory != h.argon.Memory || p.Time != h.argon.Time || p.Threads != h.argon.Threads
	default:
		cost, err := bcrypt.Cost([]byte(digest))
		return err != nil || cost != h.bcryptCost
	}
}

func (h *PasswordHasher) acquire(ctx context.Context) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: password hasher busy: %v", apperrors.ErrUnavailable, err)
	}
	return nil
}

func (h *PasswordHasher) hash(plaintext string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return hashArgon2(plaintext, h.argon)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func verifyDigest(plaintext, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		p, salt, key, err := decodeArgon2(digest)
		if err != nil {
			return false, err
		}
		other := argon2.IDKey([]byte(plaintext), salt, p.Time, p.Memory, p.Threads, uint32(len(key)))
		return subtle.ConstantTimeCompare(key, other) == 1, nil
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, errMalformedDigest
}

// hashArgon2 encodes in the PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
func hashArgon2(plaintext string, p Argon2Params) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func decodeArgon2(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errMalformedDigest
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, errMalformedDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errMalformedDigest
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errMalformedDigest
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	return p, salt, key, nil
}
