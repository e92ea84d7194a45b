package soltest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edr-dev/edr/crypto"
)

// corpusEntry is the on-disk shape of one persisted fuzz failure: the raw
// arguments that triggered it (already-encoded calldata, so replay never
// has to re-run the generator), plus the source hash it was recorded
// against (§6: "a source-hash mismatch invalidates the file on load").
type corpusEntry struct {
	SourceHash string `json:"sourceHash"`
	Calldata   string `json:"calldata"`
}

// corpusFileName is the deterministic name §6 specifies: a hash of ⟨suite
// id, test name, source hash⟩, so the same failing input always persists
// to (and is discovered at) the same path regardless of run order.
func corpusFileName(suiteID, testName, sourceHash string) string {
	h := crypto.Keccak256([]byte(suiteID + "\x00" + testName + "\x00" + sourceHash))
	return fmt.Sprintf("%x.json", h)
}

// loadCorpusEntry reads a previously persisted failure for (suiteID,
// testName), returning (nil, false) if none exists or its source hash no
// longer matches the artefact currently under test — a stale corpus file
// from a since-edited contract must never be replayed against it (§6).
func loadCorpusEntry(dir, suiteID, testName, sourceHash string) (*corpusEntry, bool) {
	path := filepath.Join(dir, corpusFileName(suiteID, testName, sourceHash))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entry corpusEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.SourceHash != sourceHash {
		return nil, false
	}
	return &entry, true
}

// saveCorpusEntry persists calldata as the failing input for (suiteID,
// testName), atomically (temp file + rename, the same write discipline §6
// requires of the fork cache) so a reader never observes a half-written
// corpus file.
func saveCorpusEntry(dir, suiteID, testName, sourceHash string, calldata []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("soltest: create corpus dir: %w", err)
	}
	entry := corpusEntry{SourceHash: sourceHash, Calldata: fmt.Sprintf("%x", calldata)}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("soltest: marshal corpus entry: %w", err)
	}

	path := filepath.Join(dir, corpusFileName(suiteID, testName, sourceHash))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("soltest: write corpus temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("soltest: rename corpus file: %w", err)
	}
	return nil
}

func decodeCalldata(entry *corpusEntry) ([]byte, error) {
	var out []byte
	_, err := fmt.Sscanf(entry.Calldata, "%x", &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
