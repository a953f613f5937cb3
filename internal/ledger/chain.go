package ledger

import (
	"fmt"
	"time"

	"github.com/designtech/dtchain/internal/digest"
	"go.uber.org/zap"
)

// Chain is an ordered sequence of records in index order.
type Chain struct {
	records []*Record
}

// NewChain wraps records without checking them. Use Verify before trusting a
// chain assembled from decoded records.
func NewChain(records ...*Record) Chain {
	return Chain{records: append([]*Record(nil), records...)}
}

// Len returns the number of records.
func (c Chain) Len() int { return len(c.records) }

// At returns the record at position i. It panics if i is out of range.
func (c Chain) At(i int) *Record { return c.records[i] }

// Records returns a copy of the record slice.
func (c Chain) Records() []*Record {
	return append([]*Record(nil), c.records...)
}

// Tip returns the last record, or nil for an empty chain.
func (c Chain) Tip() *Record {
	if len(c.records) == 0 {
		return nil
	}
	return c.records[len(c.records)-1]
}

// Root returns the digest of the chain tip, or nil for an empty chain.
func (c Chain) Root() digest.Digest {
	if t := c.Tip(); t != nil {
		return t.Digest()
	}
	return nil
}

// Builder constructs chains sequentially through a Factory.
type Builder struct {
	factory *Factory
	logger  *zap.Logger
}

// NewBuilder creates a Builder. A nil logger disables logging.
func NewBuilder(factory *Factory, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{factory: factory, logger: logger}
}

// Factory returns the factory the builder delegates to.
func (b *Builder) Factory() *Factory { return b.factory }

// Build returns a chain of count records: a genesis record followed by
// count-1 successors. A count of zero yields an empty chain. On any error no
// chain is returned.
func (b *Builder) Build(count int) (Chain, error) {
	if count < 0 {
		return Chain{}, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	if count == 0 {
		return Chain{}, nil
	}

	start := time.Now()
	records := make([]*Record, 0, count)

	genesis, err := b.factory.Genesis()
	if err != nil {
		return Chain{}, fmt.Errorf("build genesis record: %w", err)
	}
	records = append(records, genesis)

	for len(records) < count {
		next, err := b.factory.Next(records[len(records)-1])
		if err != nil {
			return Chain{}, fmt.Errorf("build record %d: %w", len(records), err)
		}
		records = append(records, next)
	}

	b.logger.Debug("chain built",
		zap.Int("count", count),
		zap.String("algorithm", b.factory.engine.Algorithm()),
		zap.String("root", records[len(records)-1].digest.Hex()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Chain{records: records}, nil
}

// Extend returns a new chain holding the records of c followed by one
// successor per payload. If c is empty a genesis record is created first.
// c itself is left untouched.
func (b *Builder) Extend(c Chain, payloads ...string) (Chain, error) {
	records := make([]*Record, 0, len(c.records)+len(payloads)+1)
	records = append(records, c.records...)

	if len(records) == 0 {
		genesis, err := b.factory.Genesis()
		if err != nil {
			return Chain{}, fmt.Errorf("build genesis record: %w", err)
		}
		records = append(records, genesis)
	}

	for _, p := range payloads {
		next, err := b.factory.NextWithPayload(records[len(records)-1], p)
		if err != nil {
			return Chain{}, fmt.Errorf("build record %d: %w", len(records), err)
		}
		records = append(records, next)
	}

	b.logger.Debug("chain extended",
		zap.Int("from", len(c.records)),
		zap.Int("to", len(records)),
	)
	return Chain{records: records}, nil
}
