package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Memory-hard enough to resist offline brute force
// while keeping login latency in the tens of milliseconds.
const (
	timeCost   uint32 = 3
	memoryCost uint32 = 64 * 1024
	threads    uint8  = 2
	keyLength  uint32 = 32
	saltLength        = 16
)

var errInvalidHash = errors.New("invalid password hash")

// Hash derives an argon2id hash and encodes it with its parameters and salt.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, timeCost, memoryCost, threads, keyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memoryCost,
		timeCost,
		threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks a candidate password against an encoded argon2id hash in
// constant time relative to the hash output.
func Verify(password, encoded string) (bool, error) {
	salt, expected, params, err := decode(encoded)
	if err != nil {
		return false, err
	}

	actual := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

var dummyOnce struct {
	sync.Once
	hash string
}

// Dummy returns a fixed placeholder hash. Login flows verify the supplied
// password against it when no account exists, so response latency does not
// reveal whether an email is registered.
func Dummy() string {
	dummyOnce.Do(func() {
		hash, err := Hash("2d2532f48c4b93c5a2a677f5f82a7a5c")
		if err != nil {
			panic(err)
		}
		dummyOnce.hash = hash
	})
	return dummyOnce.hash
}

type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decode(encoded string) ([]byte, []byte, hashParams, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, hashParams{}, errInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, hashParams{}, errInvalidHash
	}

	var params hashParams
	var threadCount uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &threadCount); err != nil || threadCount == 0 || threadCount > 255 {
		return nil, nil, hashParams{}, errInvalidHash
	}
	params.threads = uint8(threadCount)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, hashParams{}, errInvalidHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, hashParams{}, errInvalidHash
	}
	return salt, expected, params, nil
}
