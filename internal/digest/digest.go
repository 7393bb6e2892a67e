// Package digest provides content fingerprints used for change detection.
package digest

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/buildplan/internal/errors"
)

// Size is the length in bytes of digests produced by Sum.
const Size = 32

// Digest is an immutable byte fingerprint. The zero value is the empty
// digest. Two digests are equal iff their bytes are equal, so Digest
// values may be compared with == and used as map keys.
type Digest struct {
	raw string
}

// FromBytes wraps raw digest bytes. The slice is copied.
func FromBytes(raw []byte) Digest {
	return Digest{raw: string(raw)}
}

// Sum returns the blake3-256 digest of content.
func Sum(content []byte) Digest {
	sum := blake3.Sum256(content)
	return FromBytes(sum[:])
}

// SumString returns the digest of s.
func SumString(s string) Digest {
	return Sum([]byte(s))
}

// SumAll combines digests into one. Order is significant, and each digest
// is length-prefixed so that different groupings never collide.
func SumAll(ds ...Digest) Digest {
	h := blake3.New()
	var lenBuf [4]byte
	for _, d := range ds {
		n := len(d.raw)
		lenBuf[0] = byte(n >> 24)
		lenBuf[1] = byte(n >> 16)
		lenBuf[2] = byte(n >> 8)
		lenBuf[3] = byte(n)
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write([]byte(d.raw))
	}
	return FromBytes(h.Sum(nil)[:Size])
}

// Parse decodes the text produced by String. Only lowercase hex of even
// length is accepted, so Parse(s).String() == s for every accepted s.
func Parse(text string) (Digest, error) {
	if len(text)%2 != 0 {
		return Digest{}, errors.NewFormatError(errors.ErrCodeDigestMalformed,
			fmt.Sprintf("digest %q", text), fmt.Errorf("odd length %d", len(text)))
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return Digest{}, errors.NewFormatError(errors.ErrCodeDigestMalformed,
				fmt.Sprintf("digest %q", text), fmt.Errorf("invalid character %q at offset %d", c, i))
		}
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return Digest{}, errors.NewFormatError(errors.ErrCodeDigestMalformed, fmt.Sprintf("digest %q", text), err)
	}
	return FromBytes(raw), nil
}

// String returns the lowercase hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString([]byte(d.raw))
}

// Bytes returns a copy of the raw digest bytes.
func (d Digest) Bytes() []byte {
	return []byte(d.raw)
}

// Len returns the number of raw bytes.
func (d Digest) Len() int {
	return len(d.raw)
}

// Equal reports whether d and other hold the same bytes.
func (d Digest) Equal(other Digest) bool {
	return d.raw == other.raw
}

// IsZero reports whether d is the empty digest.
func (d Digest) IsZero() bool {
	return d.raw == ""
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
