package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Supported algorithm names.
const (
	SHA256     = "sha256"
	SHA512     = "sha512"
	SHA3_256   = "sha3-256"
	BLAKE2b256 = "blake2b-256"
)

var algorithms = map[string]func() hash.Hash{
	SHA256:     sha256.New,
	SHA512:     sha512.New,
	SHA3_256:   sha3.New256,
	BLAKE2b256: newBLAKE2b256,
}

func newBLAKE2b256() hash.Hash {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return h
}

// Algorithms returns the names of all supported algorithms, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Engine computes digests with a single hash algorithm.
type Engine struct {
	algorithm string
	newHash   func() hash.Hash
	size      int
}

// New returns an Engine for the named algorithm. Names are case-insensitive.
func New(algorithm string) (*Engine, error) {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	newHash, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown algorithm %q (supported: %s)",
			ErrDigestUnavailable, algorithm, strings.Join(Algorithms(), ", "))
	}
	return &Engine{
		algorithm: name,
		newHash:   newHash,
		size:      newHash().Size(),
	}, nil
}

// Default returns the SHA-256 engine.
func Default() *Engine {
	e, err := New(SHA256)
	if err != nil {
		panic(err)
	}
	return e
}

// Sum returns the digest of data. The same input always yields the same
// output.
func (e *Engine) Sum(data []byte) (Digest, error) {
	if e == nil || e.newHash == nil {
		return nil, ErrDigestUnavailable
	}
	h := e.newHash()
	h.Write(data) //nolint:errcheck
	return Digest(h.Sum(nil)), nil
}

// Algorithm returns the canonical algorithm name.
func (e *Engine) Algorithm() string { return e.algorithm }

// Size returns the digest width in bytes.
func (e *Engine) Size() int { return e.size }

// Bits returns the digest width in bits.
func (e *Engine) Bits() int { return e.size * 8 }

// Zero returns the all-zero digest of the engine's width. It is the
// predecessor digest of every genesis record.
func (e *Engine) Zero() Digest {
	return make(Digest, e.size)
}
