package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// ID is a random 128-bit identifier rendered as unpadded base64url.
type ID [16]byte

const (
	// SecretSize is the entropy carried by every opaque token.
	SecretSize   = 32
	opaqueRawLen = len(ID{}) + SecretSize
)

// Secret is the random half of an opaque token. Only its hash is persisted.
type Secret [SecretSize]byte

var ErrMalformedToken = errors.New("malformed token")

func NewID() (ID, error) {
	var id ID
	_, err := rand.Read(id[:])
	return id, err
}

func (id ID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

func ParseID(s string) (ID, error) {
	var id ID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, ErrMalformedToken
	}
	if len(raw) != len(id) {
		return id, ErrMalformedToken
	}

	copy(id[:], raw)
	return id, nil
}

func NewSecret() (Secret, error) {
	var secret Secret
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashSecret(secret Secret) [32]byte {
	return sha256.Sum256(secret[:])
}

// HashEqual compares two hashes in constant time.
func HashEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// EncodeToken joins id and secret into the opaque wire form
// base64url(id || secret).
func EncodeToken(id string, secret Secret) (string, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return "", err
	}

	var raw [opaqueRawLen]byte
	copy(raw[:len(parsed)], parsed[:])
	copy(raw[len(parsed):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeToken splits an opaque token into its id and secret.
func DecodeToken(token string) (string, Secret, error) {
	var secret Secret

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != opaqueRawLen {
		return "", secret, ErrMalformedToken
	}

	var id ID
	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])

	return id.String(), secret, nil
}

// NewToken allocates a fresh id and secret and returns the encoded token,
// the id and the secret hash to persist.
func NewToken() (token string, id string, hash [32]byte, err error) {
	rawID, err := NewID()
	if err != nil {
		return "", "", hash, err
	}
	secret, err := NewSecret()
	if err != nil {
		return "", "", hash, err
	}

	id = rawID.String()
	token, err = EncodeToken(id, secret)
	if err != nil {
		return "", "", hash, err
	}
	return token, id, HashSecret(secret), nil
}
