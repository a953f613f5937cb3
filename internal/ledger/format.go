package ledger

import "strconv"

// View is the display form of a record: every field rendered as a string,
// digests as lowercase hex.
type View struct {
	Index          string `json:"index"`
	Timestamp      string `json:"timestamp"`
	Payload        string `json:"payload"`
	Digest         string `json:"digest"`
	PreviousDigest string `json:"previous_digest"`
}

// Render returns the display form of r.
func Render(r *Record) View {
	return View{
		Index:          strconv.Itoa(r.index),
		Timestamp:      r.timestamp.Format(TimestampLayout),
		Payload:        r.payload,
		Digest:         r.digest.Hex(),
		PreviousDigest: r.previousDigest.Hex(),
	}
}

// Render returns the display form of every record in order.
func (c Chain) Render() []View {
	views := make([]View, len(c.records))
	for i, r := range c.records {
		views[i] = Render(r)
	}
	return views
}
