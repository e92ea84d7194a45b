package soltest

import (
	"path/filepath"
	"testing"
)

func TestCorpusRoundTripsAFailingCalldata(t *testing.T) {
	dir := t.TempDir()
	calldata := []byte{0xde, 0xad, 0xbe, 0xef}

	if err := saveCorpusEntry(dir, "MySuite", "testFuzzAdd", "hash-v1", calldata); err != nil {
		t.Fatalf("saveCorpusEntry: %v", err)
	}

	entry, ok := loadCorpusEntry(dir, "MySuite", "testFuzzAdd", "hash-v1")
	if !ok {
		t.Fatalf("expected a persisted entry to load")
	}
	got, err := decodeCalldata(entry)
	if err != nil {
		t.Fatalf("decodeCalldata: %v", err)
	}
	if string(got) != string(calldata) {
		t.Fatalf("calldata = %x, want %x", got, calldata)
	}
}

func TestCorpusRejectsStaleSourceHash(t *testing.T) {
	dir := t.TempDir()
	if err := saveCorpusEntry(dir, "MySuite", "testFuzzAdd", "hash-v1", []byte{0x01}); err != nil {
		t.Fatalf("saveCorpusEntry: %v", err)
	}

	if _, ok := loadCorpusEntry(dir, "MySuite", "testFuzzAdd", "hash-v2"); ok {
		t.Fatalf("expected a source-hash mismatch to invalidate the corpus entry")
	}
}

func TestCorpusMissingEntryIsNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, ok := loadCorpusEntry(dir, "MySuite", "testNeverRan", "hash-v1"); ok {
		t.Fatalf("expected no entry for a suite/test never recorded")
	}
}

func TestCorpusFileNameIsDeterministic(t *testing.T) {
	a := corpusFileName("Suite", "testX", "hash-v1")
	b := corpusFileName("Suite", "testX", "hash-v1")
	if a != b {
		t.Fatalf("corpusFileName is not deterministic: %s != %s", a, b)
	}
	c := corpusFileName("Suite", "testY", "hash-v1")
	if a == c {
		t.Fatalf("corpusFileName collided across distinct test names")
	}
}

func TestCorpusWritesAreAtomic(t *testing.T) {
	dir := t.TempDir()
	if err := saveCorpusEntry(dir, "Suite", "testX", "hash-v1", []byte{0x42}); err != nil {
		t.Fatalf("saveCorpusEntry: %v", err)
	}
	// No .tmp file should survive a successful save.
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("leftover temp files: %v", matches)
	}
}
