// Package ledger implements a hash-chained, append-only sequence of
// immutable records.
//
// Every record carries a digest computed over the canonical encoding of its
// index, timestamp and payload, plus the digest of its predecessor. The
// genesis record (index 0) carries the all-zero digest of the engine's width
// in place of a predecessor digest, so for any valid chain:
//
//	chain.At(i).PreviousDigest() == chain.At(i-1).Digest()
//	chain.At(i).Index()          == chain.At(i-1).Index() + 1
//
// Records are produced by a Factory and chains by a Builder, one record at a
// time, by a single writer. Verify re-hashes a chain and reports the first
// record that breaks the invariant.
package ledger
