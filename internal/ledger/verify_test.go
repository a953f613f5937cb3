package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/designtech/dtchain/internal/digest"
	"github.com/designtech/dtchain/internal/ledger"
)

// tamper rebuilds chain c with record i replaced by the result of fn.
func tamper(c ledger.Chain, i int, fn func(r *ledger.Record) *ledger.Record) ledger.Chain {
	records := c.Records()
	records[i] = fn(records[i])
	return ledger.NewChain(records...)
}

func TestVerify_valid(t *testing.T) {
	c, err := newBuilder(t).Build(5)
	if err != nil {
		t.Fatal(err)
	}
	if err := ledger.Verify(digest.Default(), c); err != nil {
		t.Errorf("Verify() failed on valid chain: %v", err)
	}
}

func TestVerify_emptyAndGenesisOnly(t *testing.T) {
	if err := ledger.Verify(digest.Default(), ledger.Chain{}); err != nil {
		t.Errorf("Verify() on empty chain should pass: %v", err)
	}
	c, _ := newBuilder(t).Build(1)
	if err := ledger.Verify(digest.Default(), c); err != nil {
		t.Errorf("Verify() on genesis-only chain should pass: %v", err)
	}
}

func TestVerify_detectsTampering(t *testing.T) {
	base, err := newBuilder(t).Build(4)
	if err != nil {
		t.Fatal(err)
	}
	zero := digest.Default().Zero()

	tests := []struct {
		name string
		c    ledger.Chain
		want error
	}{
		{
			name: "payload changed",
			c: tamper(base, 2, func(r *ledger.Record) *ledger.Record {
				return ledger.Restore(r.Index(), r.Timestamp(), "forged", r.Digest(), r.PreviousDigest())
			}),
			want: ledger.ErrDigestMismatch,
		},
		{
			name: "timestamp changed",
			c: tamper(base, 1, func(r *ledger.Record) *ledger.Record {
				return ledger.Restore(r.Index(), r.Timestamp().Add(time.Nanosecond), r.Payload(), r.Digest(), r.PreviousDigest())
			}),
			want: ledger.ErrDigestMismatch,
		},
		{
			name: "previous digest changed",
			c: tamper(base, 3, func(r *ledger.Record) *ledger.Record {
				return ledger.Restore(r.Index(), r.Timestamp(), r.Payload(), r.Digest(), zero)
			}),
			want: ledger.ErrBrokenLink,
		},
		{
			name: "index skipped",
			c: tamper(base, 2, func(r *ledger.Record) *ledger.Record {
				return ledger.Restore(r.Index()+1, r.Timestamp(), r.Payload(), r.Digest(), r.PreviousDigest())
			}),
			want: ledger.ErrIndexGap,
		},
		{
			name: "genesis with predecessor",
			c: tamper(base, 0, func(r *ledger.Record) *ledger.Record {
				return ledger.Restore(r.Index(), r.Timestamp(), r.Payload(), r.Digest(), r.Digest())
			}),
			want: ledger.ErrBadGenesis,
		},
		{
			name: "genesis not at index 0",
			c:    ledger.NewChain(base.Records()[1:]...),
			want: ledger.ErrBadGenesis,
		},
		{
			name: "record removed",
			c:    ledger.NewChain(append(base.Records()[:1], base.Records()[2:]...)...),
			want: ledger.ErrIndexGap,
		},
		{
			name: "nil record",
			c:    tamper(base, 1, func(*ledger.Record) *ledger.Record { return nil }),
			want: ledger.ErrIndexGap,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ledger.Verify(digest.Default(), tc.c)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if err := ledger.Verify(digest.Default(), base); err != nil {
		t.Errorf("tampering helpers modified the original chain: %v", err)
	}
}

func TestVerify_wrongEngine(t *testing.T) {
	c, _ := newBuilder(t).Build(2)
	sha3, _ := digest.New(digest.SHA3_256)
	if err := ledger.Verify(sha3, c); !errors.Is(err, ledger.ErrDigestMismatch) {
		t.Errorf("expected ErrDigestMismatch with a different algorithm, got %v", err)
	}
	if err := ledger.Verify(nil, c); !errors.Is(err, digest.ErrDigestUnavailable) {
		t.Errorf("expected ErrDigestUnavailable for nil engine, got %v", err)
	}
	if err := ledger.Verify(&digest.Engine{}, c); !errors.Is(err, digest.ErrDigestUnavailable) {
		t.Errorf("expected ErrDigestUnavailable for zero-value engine, got %v", err)
	}
	if err := ledger.Verify(&digest.Engine{}, ledger.Chain{}); !errors.Is(err, digest.ErrDigestUnavailable) {
		t.Errorf("expected ErrDigestUnavailable for zero-value engine on empty chain, got %v", err)
	}
}
