package ledger

import (
	"fmt"

	"github.com/designtech/dtchain/internal/digest"
)

// Verify walks the chain and checks that every record is consistent with its
// contents and its predecessor. The genesis record must sit at index 0 and
// carry the engine's all-zero sentinel as its previous digest. An empty chain
// is valid. The first failure is returned, wrapped with its index.
func Verify(engine *digest.Engine, c Chain) error {
	if engine == nil || engine.Size() == 0 {
		return digest.ErrDigestUnavailable
	}
	for i, curr := range c.records {
		if curr == nil {
			return fmt.Errorf("record %d: %w: missing record", i, ErrIndexGap)
		}

		if i == 0 {
			if curr.index != 0 {
				return fmt.Errorf("record %d: %w: genesis has index %d", i, ErrBadGenesis, curr.index)
			}
			if !curr.previousDigest.Equal(engine.Zero()) {
				return fmt.Errorf("record %d: %w: previous digest is not the zero sentinel", i, ErrBadGenesis)
			}
		} else {
			prev := c.records[i-1]
			if curr.index != prev.index+1 {
				return fmt.Errorf("record %d: %w: got index %d after %d", i, ErrIndexGap, curr.index, prev.index)
			}
			if !curr.previousDigest.Equal(prev.digest) {
				return fmt.Errorf("record %d: %w", curr.index, ErrBrokenLink)
			}
		}

		computed, err := hashRecord(engine, curr.index, curr.timestamp, curr.payload)
		if err != nil {
			return fmt.Errorf("record %d: %w", curr.index, err)
		}
		if !computed.Equal(curr.digest) {
			return fmt.Errorf("record %d: %w", curr.index, ErrDigestMismatch)
		}
	}
	return nil
}
