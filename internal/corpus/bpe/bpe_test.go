package bpe

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T) (vocabPath, mergesPath string) {
	t.Helper()
	dir := t.TempDir()
	byteToRune, _ := buildByteEncoding()

	vocab := map[string]uint32{}
	for b := 0; b < 256; b++ {
		vocab[string(byteToRune[byte(b)])] = uint32(b)
	}
	low := string(byteToRune['l'])
	oh := string(byteToRune['o'])
	vocab[low+oh] = 256 // "lo"

	data, err := json.Marshal(vocab)
	if err != nil {
		t.Fatalf("marshal vocab: %v", err)
	}
	vocabPath = filepath.Join(dir, "vocab.json")
	if err := os.WriteFile(vocabPath, data, 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}

	mergesPath = filepath.Join(dir, "merges.txt")
	if err := os.WriteFile(mergesPath, []byte(low+" "+oh+"\n"), 0o644); err != nil {
		t.Fatalf("write merges: %v", err)
	}
	return vocabPath, mergesPath
}

func TestTokenizeAppliesMerges(t *testing.T) {
	vocabPath, mergesPath := writeFixture(t)
	tok, err := Load(vocabPath, mergesPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ids, err := tok.Tokenize("lo")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(ids) != 1 || ids[0] != 256 {
		t.Fatalf("Tokenize(lo) = %v, want [256] (merged)", ids)
	}
}

func TestTokenizeFallsBackToBytes(t *testing.T) {
	vocabPath, mergesPath := writeFixture(t)
	tok, err := Load(vocabPath, mergesPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ids, err := tok.Tokenize("z")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(ids) != 1 || ids[0] != uint32('z') {
		t.Fatalf("Tokenize(z) = %v, want [%d]", ids, 'z')
	}
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/vocab.json", "/nonexistent/merges.txt"); err == nil {
		t.Fatalf("expected error for missing vocab file")
	}
}
