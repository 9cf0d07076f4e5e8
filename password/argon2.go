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

	"golang.org/x/crypto/argon2"
)

const phcAlgorithm = "argon2id"

// Floors for both configuration and stored hashes.
const (
	floorMemoryKB    uint32 = 8 * 1024
	floorTime        uint32 = 1
	floorParallelism uint8  = 1
	floorSaltLength         = 16
	floorKeyLength          = 16
)

var (
	// ErrEmptyPassword is returned by Hash for an empty input.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrMalformedHash wraps every reason a stored hash could not be read.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config holds the argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes and verifies passwords as PHC strings of the form
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// It is safe for concurrent use.
type Argon2 struct {
	cfg Config
}

func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < floorMemoryKB:
		return nil, fmt.Errorf("password memory must be >= %d KB", floorMemoryKB)
	case cfg.Time < floorTime:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < floorParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < floorSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", floorSaltLength)
	case cfg.KeyLength < floorKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", floorKeyLength)
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash derives a new salted hash. Length and strength rules belong to
// [Policy]; Hash only rejects the empty string. The raw bytes are hashed
// without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	h := phc{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        make([]byte, a.cfg.SaltLength),
	}
	if _, err := io.ReadFull(rand.Reader, h.salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	h.key = h.derive(password, a.cfg.KeyLength)
	return h.String(), nil
}

// Verify reports whether password matches encoded. A malformed hash is an
// error, a mismatch is not.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	h, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	got := h.derive(password, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current configuration, or with a different key length.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	h, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	weaker := h.memory < a.cfg.Memory ||
		h.time < a.cfg.Time ||
		h.parallelism < a.cfg.Parallelism ||
		uint32(len(h.key)) != a.cfg.KeyLength
	return weaker, nil
}

// phc is the decoded form of one stored hash.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, keyLen)
}

func (h phc) String() string {
	var b strings.Builder
	b.WriteString("$" + phcAlgorithm)
	b.WriteString("$v=" + strconv.Itoa(argon2.Version))
	fmt.Fprintf(&b, "$m=%d,t=%d,p=%d", h.memory, h.time, h.parallelism)
	b.WriteString("$" + base64.StdEncoding.EncodeToString(h.salt))
	b.WriteString("$" + base64.StdEncoding.EncodeToString(h.key))
	return b.String()
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, reason)
}

func decodePHC(encoded string) (phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return phc{}, malformed("not a PHC string")
	}
	if fields[1] != phcAlgorithm {
		return phc{}, malformed("algorithm " + strconv.Quote(fields[1]))
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return phc{}, malformed("version " + strconv.Quote(fields[2]))
	}

	var h phc
	if err := h.decodeParams(fields[3]); err != nil {
		return phc{}, err
	}

	var err error
	if h.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil || len(h.salt) < floorSaltLength {
		return phc{}, malformed("salt")
	}
	if h.key, err = base64.StdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return phc{}, malformed("key")
	}
	return h, nil
}

// decodeParams reads "m=..,t=..,p=..". All three are required, in any
// order, and each must meet its floor.
func (h *phc) decodeParams(s string) error {
	pairs := strings.Split(s, ",")
	if len(pairs) != 3 {
		return malformed("parameters")
	}

	seen := make(map[string]bool, 3)
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return malformed("parameter " + strconv.Quote(pair))
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < floorMemoryKB {
				return malformed("memory")
			}
			h.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < floorTime {
				return malformed("time")
			}
			h.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || uint8(v) < floorParallelism {
				return malformed("parallelism")
			}
			h.parallelism = uint8(v)
		default:
			return malformed("parameter " + strconv.Quote(name))
		}
	}
	return nil
}
