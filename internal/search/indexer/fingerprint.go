package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/ternarybob/quaero/internal/search"
)

type fingerprintTuple struct {
	URL           string `json:"url"`
	LastFetchedAt string `json:"last_fetched_at"`
	ContentHash   string `json:"content_hash"`
}

// computeFingerprint hashes (schema digest, sorted (url, last_fetched_at,
// content_hash) tuples) into a deterministic segment id, per spec §4.5.
// Re-runs over an unchanged input set therefore produce the same id, so
// rebuilding becomes a no-op when it matches the manifest's active segment.
func computeFingerprint(schema search.Schema, tuples []fingerprintTuple) (string, error) {
	sort.Slice(tuples, func(i, j int) bool {
		return tuples[i].URL < tuples[j].URL
	})

	schemaDigest, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	payload := struct {
		Schema []byte              `json:"schema"`
		Tuples []fingerprintTuple  `json:"tuples"`
	}{Schema: schemaDigest, Tuples: tuples}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
