package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/designtech/dtchain/internal/digest"
)

// DefaultGenesisPayload is the payload of every genesis record unless
// overridden with WithGenesisPayload.
const DefaultGenesisPayload = "Genesis Block"

// DefaultPayload is the default payload policy: "block<index>data".
func DefaultPayload(index int) string {
	return "block" + strconv.Itoa(index) + "data"
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithClock overrides the time source. Mostly useful in tests.
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// WithGenesisPayload sets the payload written into genesis records.
func WithGenesisPayload(payload string) FactoryOption {
	return func(f *Factory) {
		f.genesisPayload = payload
	}
}

// WithPayloadFunc sets the payload policy used by Next.
func WithPayloadFunc(fn func(index int) string) FactoryOption {
	return func(f *Factory) {
		if fn != nil {
			f.payload = fn
		}
	}
}

// Factory produces well-formed records: a genesis record, or a successor of
// a given record.
type Factory struct {
	engine         *digest.Engine
	now            func() time.Time
	genesisPayload string
	payload        func(index int) string
}

// NewFactory creates a Factory that digests records with engine. A nil engine
// falls back to SHA-256.
func NewFactory(engine *digest.Engine, opts ...FactoryOption) *Factory {
	if engine == nil {
		engine = digest.Default()
	}
	f := &Factory{
		engine:         engine,
		now:            time.Now,
		genesisPayload: DefaultGenesisPayload,
		payload:        DefaultPayload,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Engine returns the digest engine used by the factory.
func (f *Factory) Engine() *digest.Engine { return f.engine }

// Genesis creates the first record of a chain. Its previous digest is the
// engine's all-zero sentinel.
func (f *Factory) Genesis() (*Record, error) {
	return f.create(0, f.genesisPayload, f.engine.Zero())
}

// Next creates the successor of prev using the factory's payload policy.
func (f *Factory) Next(prev *Record) (*Record, error) {
	if err := f.checkPredecessor(prev); err != nil {
		return nil, err
	}
	index := prev.index + 1
	return f.create(index, f.payload(index), prev.digest)
}

// NextWithPayload creates the successor of prev carrying payload.
func (f *Factory) NextWithPayload(prev *Record, payload string) (*Record, error) {
	if err := f.checkPredecessor(prev); err != nil {
		return nil, err
	}
	return f.create(prev.index+1, payload, prev.digest)
}

func (f *Factory) checkPredecessor(prev *Record) error {
	if prev == nil {
		return fmt.Errorf("%w: predecessor is nil", ErrInvalidPredecessor)
	}
	if len(prev.digest) != f.engine.Size() {
		return fmt.Errorf("%w: record %d has a %d-byte digest, engine %s produces %d",
			ErrInvalidPredecessor, prev.index, len(prev.digest), f.engine.Algorithm(), f.engine.Size())
	}
	return nil
}

func (f *Factory) create(index int, payload string, prev digest.Digest) (*Record, error) {
	ts := f.now().UTC()
	d, err := hashRecord(f.engine, index, ts, payload)
	if err != nil {
		return nil, fmt.Errorf("digest record %d: %w", index, err)
	}
	return &Record{
		index:          index,
		timestamp:      ts,
		payload:        payload,
		digest:         d,
		previousDigest: prev.Clone(),
	}, nil
}
