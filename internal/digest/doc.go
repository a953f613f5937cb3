// Package digest computes the fixed-width cryptographic digests that bind
// ledger records to one another.
//
// An Engine wraps a single hash algorithm and is safe for concurrent use: each
// call to Sum builds a fresh hash state. SHA-256 is the default; SHA-512,
// SHA3-256 and BLAKE2b-256 are also available. All supported algorithms
// produce at least 256 bits of output.
package digest
