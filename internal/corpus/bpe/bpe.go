// Package bpe is a byte-level BPE tokenizer backend, grounded on the
// GPT-2-style vocabulary+merges format: a JSON vocabulary file mapping
// token strings to IDs plus a newline-separated ranked merge list. It
// implements tokenizer.BPETokenizer so the corpus tokenizer adapter has a
// concrete, swappable external collaborator rather than an abstract
// interface with no implementation anywhere in the repository.
package bpe

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// pair is an ordered pair of byte-level BPE symbols considered for merging.
type pair struct{ a, b string }

// Tokenizer is a minimal greedy byte-level BPE encoder: input bytes are
// mapped through a reversible byte-to-printable-rune table (GPT-2's
// trick for making every byte representable in a text vocab file), then
// repeatedly merged according to merge rank until no adjacent pair of
// symbols appears in the merge table.
type Tokenizer struct {
	vocab      map[string]uint32 // token string -> ID
	vocabRev   map[uint32][]byte // ID -> original (pre-byte-encoding) bytes
	merges     map[pair]int      // pair -> rank (lower merges first)
	byteToRune map[byte]rune
	runeToByte map[rune]byte
}

// Load reads a vocabulary JSON file (token string -> ID) and a merges file
// (one "left right" pair per line, ordered by merge priority) and builds a
// Tokenizer. It fails if either file is absent or malformed, per the
// tokenizer adapter's TokenizerLoad contract.
func Load(vocabPath, mergesPath string) (*Tokenizer, error) {
	vocabBytes, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("bpe: reading vocab file %s: %w", vocabPath, err)
	}
	var vocab map[string]uint32
	if err := json.Unmarshal(vocabBytes, &vocab); err != nil {
		return nil, fmt.Errorf("bpe: parsing vocab file %s: %w", vocabPath, err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("bpe: vocab file %s is empty", vocabPath)
	}

	byteToRune, runeToByte := buildByteEncoding()

	t := &Tokenizer{
		vocab:      vocab,
		vocabRev:   make(map[uint32][]byte, len(vocab)),
		merges:     make(map[pair]int),
		byteToRune: byteToRune,
		runeToByte: runeToByte,
	}
	for tok, id := range vocab {
		t.vocabRev[id] = decodeByteLevel(tok, runeToByte)
	}

	f, err := os.Open(mergesPath)
	if err != nil {
		return nil, fmt.Errorf("bpe: reading merges file %s: %w", mergesPath, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	rank := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bpe: malformed merge rule %q in %s", line, mergesPath)
		}
		t.merges[pair{parts[0], parts[1]}] = rank
		rank++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bpe: scanning merges file %s: %w", mergesPath, err)
	}
	return t, nil
}

// Tokenize implements tokenizer.BPETokenizer: it byte-encodes s, applies
// greedy BPE merging, and maps the resulting symbols to token IDs. A
// symbol with no vocabulary entry decomposes to its constituent raw-byte
// tokens (GPT-2's fallback for unseen sequences).
func (t *Tokenizer) Tokenize(s string) ([]uint32, error) {
	symbols := encodeByteLevel([]byte(s), t.byteToRune)
	merged := t.applyMerges(symbols)

	out := make([]uint32, 0, len(merged))
	for _, sym := range merged {
		if id, ok := t.vocab[sym]; ok {
			out = append(out, id)
			continue
		}
		for _, r := range sym {
			if id, ok := t.vocab[string(r)]; ok {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// applyMerges repeatedly merges the lowest-rank adjacent pair until no
// known pair remains, the classical BPE encode loop.
func (t *Tokenizer) applyMerges(symbols []string) []string {
	for len(symbols) > 1 {
		bestRank := -1
		bestIdx := -1
		for i := 0; i < len(symbols)-1; i++ {
			if r, ok := t.merges[pair{symbols[i], symbols[i+1]}]; ok {
				if bestRank == -1 || r < bestRank {
					bestRank = r
					bestIdx = i
				}
			}
		}
		if bestIdx == -1 {
			break
		}
		merged := symbols[bestIdx] + symbols[bestIdx+1]
		next := make([]string, 0, len(symbols)-1)
		next = append(next, symbols[:bestIdx]...)
		next = append(next, merged)
		next = append(next, symbols[bestIdx+2:]...)
		symbols = next
	}
	return symbols
}

// Vocab implements tokenizer.BPETokenizer: it returns every token ID's
// byte payload as raw bytes, with the vocabulary file's GPT-2 byte-level
// encoding already undone. The corpus tokenizer adapter treats these bytes
// as the "normalized" space and un-applies the corpus NormalizeMap on top
// of it.
func (t *Tokenizer) Vocab() map[uint32][]byte {
	out := make(map[uint32][]byte, len(t.vocabRev))
	for id, b := range t.vocabRev {
		out[id] = b
	}
	return out
}

// buildByteEncoding constructs GPT-2's reversible byte<->rune table: bytes
// that are already printable map to themselves, the rest map to unused
// codepoints starting at 256, so every possible byte sequence has a
// representation in a plain-text vocabulary file.
func buildByteEncoding() (map[byte]rune, map[rune]byte) {
	byteToRune := make(map[byte]rune, 256)
	var printable []int
	for _, r := range [][2]int{{'!', '~'}, {0xA1, 0xAC}, {0xAE, 0xFF}} {
		for b := r[0]; b <= r[1]; b++ {
			printable = append(printable, b)
		}
	}
	printableSet := make(map[int]bool, len(printable))
	for _, b := range printable {
		printableSet[b] = true
	}
	n := 0
	next := 256
	for b := 0; b < 256; b++ {
		if printableSet[b] {
			byteToRune[byte(b)] = rune(b)
		} else {
			byteToRune[byte(b)] = rune(next + n)
			n++
		}
	}
	runeToByte := make(map[rune]byte, 256)
	for b, r := range byteToRune {
		runeToByte[r] = b
	}
	return byteToRune, runeToByte
}

func encodeByteLevel(raw []byte, byteToRune map[byte]rune) []string {
	out := make([]string, len(raw))
	for i, b := range raw {
		out[i] = string(byteToRune[b])
	}
	return out
}

func decodeByteLevel(s string, runeToByte map[rune]byte) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := runeToByte[r]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, byte(r))
	}
	return out
}
