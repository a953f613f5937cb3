package digest

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrEncoding is returned when input cannot be canonically encoded.
	ErrEncoding = errors.New("digest: input cannot be encoded")

	// ErrDigestUnavailable is returned when the requested hash primitive is
	// unknown or the Engine was not initialised.
	ErrDigestUnavailable = errors.New("digest: hash primitive unavailable")
)

// Digest is the raw output of an Engine.
type Digest []byte

// Hex renders the digest as two lowercase hex characters per byte with no
// separator.
func (d Digest) Hex() string {
	return hex.EncodeToString(d)
}

// String implements fmt.Stringer.
func (d Digest) String() string { return d.Hex() }

// Equal reports whether d and o hold the same bytes.
func (d Digest) Equal(o Digest) bool {
	return bytes.Equal(d, o)
}

// IsZero reports whether every byte of d is zero. An empty digest is not
// considered zero.
func (d Digest) IsZero() bool {
	if len(d) == 0 {
		return false
	}
	for _, b := range d {
		if b != 0 {
			return false
		}
	}
	return true
}

// Clone returns a copy of d that does not share its backing array.
func (d Digest) Clone() Digest {
	if d == nil {
		return nil
	}
	return append(Digest(nil), d...)
}

// Parse decodes a hex display string into a Digest of the given width in
// bytes.
func Parse(s string, size int) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse digest %q: %w", s, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("parse digest %q: got %d bytes, want %d", s, len(b), size)
	}
	return Digest(b), nil
}
