// Package fingerprint identifies pages: an exact digest of the extracted
// records, used for stall detection, and a structural simhash of the DOM,
// used to notice a site changing its layout mid-crawl.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
	"math/bits"

	"github.com/Carbocoon/SteelPriceCrawler/models"
)

// Records returns the hex sha256 of the canonical JSON encoding of recs.
// Map keys encode sorted, so equal digests mean equal record lists.
func Records(recs []models.Record) string {
	if recs == nil {
		recs = []models.Record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		// Record is map[string]string; encoding cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// simhash folds per-token FNV-64a hashes into a 64-bit locality-sensitive
// hash: bit i is set when more tokens set it than clear it.
func simhash(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}
	var votes [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := range votes {
			if sum&(1<<uint(i)) != 0 {
				votes[i]++
			} else {
				votes[i]--
			}
		}
	}
	var out uint64
	for i, v := range votes {
		if v > 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

// Distance is the Hamming distance between two simhashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Near reports whether a and b differ in at most threshold bits.
func Near(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
