package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	algorithmID           = "argon2id"

	// DefaultMaxPasswordBytes caps input when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length")
	ErrMalformedHash    = errors.New("invalid PHC format")
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultConfig returns the recommended interactive-login parameters.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	config Config

	dummyOnce sync.Once
	dummy     string
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Hasher{config: cfg}, nil
}

// Hash returns the PHC encoding of password under the configured parameters.
// Password bytes are used exactly as provided (no Unicode normalization).
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > h.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encodedHash. Oversized input is
// rejected before any key derivation runs.
func (h *Hasher) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > h.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// Burn runs one verification against a fixed internal hash and discards the
// result. Callers use it when the account does not exist so both branches
// cost the same.
func (h *Hasher) Burn(password string) {
	h.dummyOnce.Do(func() {
		dummy, err := h.Hash("shopauth-burn-placeholder")
		if err == nil {
			h.dummy = dummy
		}
	})
	if h.dummy == "" {
		return
	}
	if len(password) > h.config.MaxPasswordBytes {
		password = password[:h.config.MaxPasswordBytes]
	}
	_, _ = h.Verify(password, h.dummy)
}

// NeedsRehash reports whether encodedHash was produced with weaker
// parameters than the Hasher's.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	switch {
	case h.config.Memory > parsed.memory,
		h.config.Time > parsed.time,
		h.config.Parallelism > parsed.parallelism,
		h.config.KeyLength != parsed.keyLength:
		return true, nil
	}
	return false, nil
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedHash
	}

	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	versionPart := parts[2]
	if !strings.HasPrefix(versionPart, "v=") {
		return nil, errors.New("missing argon2 version")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(versionPart, "v="))
	if err != nil {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}

	hash, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(hash) == 0 {
		return nil, errors.New("invalid hash length")
	}

	return &parsedPHC{
		memory:      params.memory,
		time:        params.time,
		parallelism: params.parallelism,
		salt:        salt,
		hash:        hash,
		keyLength:   uint32(len(hash)),
	}, nil
}

type parsedParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func parseParams(part string) (*parsedParams, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.New("invalid parameter format")
	}

	var (
		memorySet, timeSet, parallelismSet bool
		params                             parsedParams
	)

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.New("invalid parameter entry")
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, errors.New("invalid memory parameter")
			}
			params.memory = uint32(v)
			memorySet = true
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, errors.New("invalid time parameter")
			}
			params.time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, errors.New("invalid parallelism parameter")
			}
			params.parallelism = uint8(v)
			parallelismSet = true
		default:
			return nil, errors.New("unsupported parameter")
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return nil, errors.New("missing parameters")
	}

	return &params, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	if cfg.MaxPasswordBytes < minPassBytes {
		return errors.New("password max bytes must be >= 10")
	}

	return nil
}
