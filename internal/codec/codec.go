// Package codec reads and writes chain documents: a portable form of a
// ledger.Chain that carries its digest algorithm so the chain can be
// verified after a round trip.
//
// Two formats are supported. JSON renders timestamps as RFC 3339 strings and
// digests as lowercase hex. CBOR uses short keys, unix-nanosecond timestamps
// and raw digest bytes, encoded with canonical (deterministic) options.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/designtech/dtchain/internal/digest"
	"github.com/designtech/dtchain/internal/ledger"
	"github.com/fxamacker/cbor/v2"
)

// Format names.
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

var (
	ErrUnknownFormat = errors.New("codec: unknown format")
	ErrMalformed     = errors.New("codec: malformed document")
)

// maxDocumentRecords bounds how many records a decoded document may carry.
const maxDocumentRecords = 1 << 20

// CBOR timestamps are int64 unix nanoseconds; instants outside this range
// cannot be represented.
var (
	minCBORTime = time.Unix(0, math.MinInt64)
	maxCBORTime = time.Unix(0, math.MaxInt64)
)

var encMode, _ = cbor.EncOptions{
	Sort:          cbor.SortCanonical,
	ShortestFloat: cbor.ShortestFloatNone,
	IndefLength:   cbor.IndefLengthForbidden,
}.EncMode()

var decMode, _ = cbor.DecOptions{
	MaxArrayElements: maxDocumentRecords,
	MaxMapPairs:      64,
	MaxNestedLevels:  16,
	IndefLength:      cbor.IndefLengthForbidden,
	DupMapKey:        cbor.DupMapKeyEnforcedAPF,
}.DecMode()

// RecordDoc is the document form of a single record.
type RecordDoc struct {
	Index          int       `json:"index"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        string    `json:"payload"`
	Digest         string    `json:"digest"`
	PreviousDigest string    `json:"previous_digest"`
}

// cborRecord is the wire form of a record in CBOR documents.
type cborRecord struct {
	Index          int    `cbor:"i"`
	Timestamp      int64  `cbor:"t"`
	Payload        string `cbor:"p"`
	Digest         []byte `cbor:"d"`
	PreviousDigest []byte `cbor:"pd"`
}

type cborDocument struct {
	Algorithm string       `cbor:"a"`
	Records   []cborRecord `cbor:"r"`
}

// Document is a chain together with the algorithm needed to verify it.
type Document struct {
	Algorithm string      `json:"algorithm"`
	Records   []RecordDoc `json:"records"`
}

// FromChain converts c into a document.
func FromChain(algorithm string, c ledger.Chain) Document {
	doc := Document{Algorithm: algorithm, Records: make([]RecordDoc, c.Len())}
	for i := 0; i < c.Len(); i++ {
		r := c.At(i)
		doc.Records[i] = RecordDoc{
			Index:          r.Index(),
			Timestamp:      r.Timestamp(),
			Payload:        r.Payload(),
			Digest:         r.Digest().Hex(),
			PreviousDigest: r.PreviousDigest().Hex(),
		}
	}
	return doc
}

// Engine returns the digest engine named by the document.
func (d Document) Engine() (*digest.Engine, error) {
	return digest.New(d.Algorithm)
}

// Chain rebuilds the ledger chain described by the document. Digests are
// parsed but not checked; pass the result to ledger.Verify.
func (d Document) Chain() (ledger.Chain, *digest.Engine, error) {
	engine, err := d.Engine()
	if err != nil {
		return ledger.Chain{}, nil, err
	}
	records := make([]*ledger.Record, len(d.Records))
	for i, rd := range d.Records {
		own, err := digest.Parse(rd.Digest, engine.Size())
		if err != nil {
			return ledger.Chain{}, nil, fmt.Errorf("%w: record %d digest: %v", ErrMalformed, i, err)
		}
		prev, err := digest.Parse(rd.PreviousDigest, engine.Size())
		if err != nil {
			return ledger.Chain{}, nil, fmt.Errorf("%w: record %d previous digest: %v", ErrMalformed, i, err)
		}
		records[i] = ledger.Restore(rd.Index, rd.Timestamp, rd.Payload, own, prev)
	}
	return ledger.NewChain(records...), engine, nil
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, format string, doc Document) error {
	switch normalize(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json document: %w", err)
		}
		return nil
	case FormatCBOR:
		wire, err := toCBOR(doc)
		if err != nil {
			return err
		}
		if err := encMode.NewEncoder(w).Encode(wire); err != nil {
			return fmt.Errorf("encode cbor document: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Marshal returns the encoding of doc in the given format.
func Marshal(format string, doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, format, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a single document in the given format from r. Trailing data
// after the document is rejected. Errors from r, such as *http.MaxBytesError,
// stay reachable through errors.As.
func Decode(r io.Reader, format string) (Document, error) {
	switch normalize(format) {
	case FormatJSON:
		var doc Document
		dec := json.NewDecoder(r)
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if err := expectEOF(dec.Token()); err != nil {
			return Document{}, err
		}
		if len(doc.Records) > maxDocumentRecords {
			return Document{}, fmt.Errorf("%w: %d records exceeds limit of %d", ErrMalformed, len(doc.Records), maxDocumentRecords)
		}
		return doc, nil
	case FormatCBOR:
		var wire cborDocument
		dec := decMode.NewDecoder(r)
		if err := dec.Decode(&wire); err != nil {
			return Document{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if err := expectEOF(nil, dec.Decode(new(cbor.RawMessage))); err != nil {
			return Document{}, err
		}
		return fromCBOR(wire), nil
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// expectEOF checks the result of reading past a decoded document.
func expectEOF(_ any, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: trailing data after document", ErrMalformed)
	}
}

// FormatFromPath guesses the format from a file name, defaulting to JSON.
func FormatFromPath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".cbor") {
		return FormatCBOR
	}
	return FormatJSON
}

func normalize(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}

func toCBOR(doc Document) (cborDocument, error) {
	wire := cborDocument{Algorithm: doc.Algorithm, Records: make([]cborRecord, len(doc.Records))}
	for i, rd := range doc.Records {
		own, err := digest.Parse(rd.Digest, len(rd.Digest)/2)
		if err != nil {
			return cborDocument{}, fmt.Errorf("%w: record %d digest: %v", ErrMalformed, i, err)
		}
		prev, err := digest.Parse(rd.PreviousDigest, len(rd.PreviousDigest)/2)
		if err != nil {
			return cborDocument{}, fmt.Errorf("%w: record %d previous digest: %v", ErrMalformed, i, err)
		}
		if rd.Timestamp.Before(minCBORTime) || rd.Timestamp.After(maxCBORTime) {
			return cborDocument{}, fmt.Errorf("%w: record %d timestamp %s is outside the CBOR range", ErrMalformed, i, rd.Timestamp.Format(time.RFC3339))
		}
		wire.Records[i] = cborRecord{
			Index:          rd.Index,
			Timestamp:      rd.Timestamp.UnixNano(),
			Payload:        rd.Payload,
			Digest:         own,
			PreviousDigest: prev,
		}
	}
	return wire, nil
}

func fromCBOR(wire cborDocument) Document {
	doc := Document{Algorithm: wire.Algorithm, Records: make([]RecordDoc, len(wire.Records))}
	for i, cr := range wire.Records {
		doc.Records[i] = RecordDoc{
			Index:          cr.Index,
			Timestamp:      time.Unix(0, cr.Timestamp).UTC(),
			Payload:        cr.Payload,
			Digest:         digest.Digest(cr.Digest).Hex(),
			PreviousDigest: digest.Digest(cr.PreviousDigest).Hex(),
		}
	}
	return doc
}
