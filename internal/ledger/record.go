package ledger

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/designtech/dtchain/internal/digest"
)

// TimestampLayout is the canonical timestamp rendering used in the digest
// input. Timestamps are always formatted in UTC.
const TimestampLayout = time.RFC3339Nano

// Record is a single immutable ledger entry. Fields are only set by the
// Factory or by Restore; accessors return copies of digest bytes.
type Record struct {
	index          int
	timestamp      time.Time
	payload        string
	digest         digest.Digest
	previousDigest digest.Digest
}

// Restore rebuilds a record from previously produced fields without
// recomputing its digest. Use Verify to check a restored chain.
func Restore(index int, ts time.Time, payload string, d, prev digest.Digest) *Record {
	return &Record{
		index:          index,
		timestamp:      ts.UTC(),
		payload:        payload,
		digest:         d.Clone(),
		previousDigest: prev.Clone(),
	}
}

// Index returns the zero-based position of the record in its chain.
func (r *Record) Index() int { return r.index }

// Timestamp returns the creation time in UTC.
func (r *Record) Timestamp() time.Time { return r.timestamp }

// Payload returns the record's data.
func (r *Record) Payload() string { return r.payload }

// Digest returns the record's own digest.
func (r *Record) Digest() digest.Digest { return r.digest.Clone() }

// PreviousDigest returns the digest of the preceding record, or the all-zero
// sentinel for the genesis record.
func (r *Record) PreviousDigest() digest.Digest { return r.previousDigest.Clone() }

// IsGenesis reports whether r sits at index 0.
func (r *Record) IsGenesis() bool { return r.index == 0 }

// Equal reports whether r and o hold the same five fields.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.index == o.index &&
		r.timestamp.Equal(o.timestamp) &&
		r.payload == o.payload &&
		r.digest.Equal(o.digest) &&
		r.previousDigest.Equal(o.previousDigest)
}

// CanonicalEncoding returns the digest input for a record: the decimal index,
// the UTC timestamp in TimestampLayout, and the raw payload, concatenated
// with no separators as UTF-8 bytes.
func CanonicalEncoding(index int, ts time.Time, payload string) ([]byte, error) {
	if !utf8.ValidString(payload) {
		return nil, fmt.Errorf("%w: record %d payload is not valid UTF-8", digest.ErrEncoding, index)
	}
	buf := make([]byte, 0, 20+len(TimestampLayout)+len(payload))
	buf = strconv.AppendInt(buf, int64(index), 10)
	buf = ts.UTC().AppendFormat(buf, TimestampLayout)
	buf = append(buf, payload...)
	return buf, nil
}

// hashRecord computes the digest over the canonical encoding of the given
// fields.
func hashRecord(engine *digest.Engine, index int, ts time.Time, payload string) (digest.Digest, error) {
	data, err := CanonicalEncoding(index, ts, payload)
	if err != nil {
		return nil, err
	}
	return engine.Sum(data)
}
