package regex

import "sort"

// MaxCodePoint is the largest valid Unicode scalar value, the upper bound
// used when expanding negated character classes and `.`.
const MaxCodePoint = 0x10FFFF

// Unsupported is returned by Lower when the pattern uses a feature the core
// parses but cannot compile: Unicode properties (no property database is
// carried by this module) and, per the open design question on assertions,
// is NOT raised for `^ $ \b \B` — those lower silently to Empty instead.
type Unsupported struct {
	Feature string
}

func (e *Unsupported) Error() string {
	return "regex: unsupported feature: " + e.Feature
}

// runeRange is a closed, inclusive code-point interval.
type runeRange struct {
	Lo, Hi rune
}

// Lower reduces a parsed Pattern to the byte-level AST, expanding Unicode
// code-point ranges into UTF-8 byte-sequence fragments.
func Lower(pat *Pattern) (Node, error) {
	nodes := make([]Node, 0, len(pat.Alternatives))
	for _, alt := range pat.Alternatives {
		n, err := lowerAlternative(&alt)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return Normalize(nodes[0]), nil
	}
	return Normalize(&Union{Args: nodes}), nil
}

func lowerAlternative(alt *Alternative) (Node, error) {
	nodes := make([]Node, 0, len(alt.Elements))
	for _, el := range alt.Elements {
		n, err := lowerElement(el)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 {
		return Empty{}, nil
	}
	return Normalize(&Concat{Args: nodes}), nil
}

func lowerElement(el Element) (Node, error) {
	switch v := el.(type) {
	case *Assertion:
		// ^, $, \b, \B parse but have no effect on matching (see the
		// assertions open question): they lower to the empty string.
		return Empty{}, nil
	case *Quantifier:
		return lowerQuantifier(v)
	case *Literal:
		return lowerQuantifiable(v)
	default:
		if qe, ok := el.(QuantifiableElement); ok {
			return lowerQuantifiable(qe)
		}
		return nil, &ParseError{Message: "unrecognized element"}
	}
}

func lowerQuantifier(q *Quantifier) (Node, error) {
	elem, err := lowerQuantifiable(q.Elem)
	if err != nil {
		return nil, err
	}
	switch {
	case q.Min == 0 && q.Max == -1:
		return Normalize(&Star{Arg: elem}), nil
	case q.Min == 1 && q.Max == -1:
		// E+ => E . Star(E)
		return Normalize(&Concat{Args: []Node{elem, &Star{Arg: elem}}}), nil
	case q.Min == 0 && q.Max == 1:
		return Normalize(&Union{Args: []Node{Empty{}, elem}}), nil
	default:
		return lowerBoundedRepetition(elem, q.Min, q.Max)
	}
}

// lowerBoundedRepetition expands E{m,n} into E^m . (ε|E)^(n-m), and E{m,}
// into E^m . Star(E) (Max == -1 signals unbounded).
func lowerBoundedRepetition(elem Node, min, max int) (Node, error) {
	if min < 0 || (max != -1 && max < min) {
		return nil, &ParseError{Message: "invalid repetition bounds"}
	}
	parts := make([]Node, 0, min+1)
	for i := 0; i < min; i++ {
		parts = append(parts, elem)
	}
	if max == -1 {
		parts = append(parts, &Star{Arg: elem})
	} else {
		for i := 0; i < max-min; i++ {
			parts = append(parts, &Union{Args: []Node{Empty{}, elem}})
		}
	}
	if len(parts) == 0 {
		return Empty{}, nil
	}
	return Normalize(&Concat{Args: parts}), nil
}

func lowerQuantifiable(qe QuantifiableElement) (Node, error) {
	switch v := qe.(type) {
	case *Literal:
		if v.Rune == -1 {
			return Empty{}, nil
		}
		return codePointToUTF8(v.Rune), nil
	case *AnySet:
		return runeRangesToAST([]runeRange{{0, MaxCodePoint}})
	case *EscapeSet:
		return runeRangesToAST(escapeSetRanges(v))
	case *UnicodeProp:
		return nil, &Unsupported{Feature: "unicode property \\p{" + v.Property + "}"}
	case *CharClass:
		return lowerCharClass(v)
	case *Group:
		return lowerAlternatives(v.Alternatives)
	case *CapturingGroup:
		return lowerAlternatives(v.Alternatives)
	default:
		return nil, &ParseError{Message: "unrecognized atom"}
	}
}

func lowerAlternatives(alts []Alternative) (Node, error) {
	nodes := make([]Node, 0, len(alts))
	for _, alt := range alts {
		n, err := lowerAlternative(&alt)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return Normalize(&Union{Args: nodes}), nil
}

func lowerCharClass(cc *CharClass) (Node, error) {
	var ranges []runeRange
	for _, el := range cc.Elements {
		rs, err := classElementRanges(el)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, rs...)
	}
	ranges = coalesceRanges(ranges)
	if cc.Negate {
		ranges = negateRanges(ranges)
	}
	return runeRangesToAST(ranges)
}

func classElementRanges(el ClassElement) ([]runeRange, error) {
	switch v := el.(type) {
	case *Literal:
		return []runeRange{{v.Rune, v.Rune}}, nil
	case *ClassRange:
		lo, hi := v.Min, v.Max
		if lo > hi {
			lo, hi = hi, lo
		}
		return []runeRange{{lo, hi}}, nil
	case *EscapeSet:
		return escapeSetRanges(v), nil
	case *UnicodeProp:
		return nil, &Unsupported{Feature: "unicode property \\p{" + v.Property + "} in character class"}
	default:
		return nil, &ParseError{Message: "unrecognized character class element"}
	}
}

func escapeSetRanges(e *EscapeSet) []runeRange {
	var base []runeRange
	switch e.Kind {
	case EscapeDigit:
		base = []runeRange{{'0', '9'}}
	case EscapeSpace:
		base = []runeRange{{0x09, 0x0D}, {0x20, 0x20}}
	case EscapeWord:
		base = []runeRange{{'0', '9'}, {'A', 'Z'}, {'_', '_'}, {'a', 'z'}}
	}
	if e.Negate {
		return negateRanges(base)
	}
	return base
}

// coalesceRanges sorts and merges overlapping/adjacent ranges.
func coalesceRanges(in []runeRange) []runeRange {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]runeRange(nil), in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lo < sorted[j].Lo })
	out := []runeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Lo <= last.Hi+1 {
			if r.Hi > last.Hi {
				last.Hi = r.Hi
			}
		} else {
			out = append(out, r)
		}
	}
	return out
}

// negateRanges returns the complement of a coalesced, sorted range set
// within [0, MaxCodePoint].
func negateRanges(ranges []runeRange) []runeRange {
	coalesced := coalesceRanges(ranges)
	var out []runeRange
	cursor := rune(0)
	for _, r := range coalesced {
		if r.Lo > cursor {
			out = append(out, runeRange{cursor, r.Lo - 1})
		}
		if r.Hi+1 > cursor {
			cursor = r.Hi + 1
		}
	}
	if cursor <= MaxCodePoint {
		out = append(out, runeRange{cursor, MaxCodePoint})
	}
	return out
}

// utf8LengthClasses partitions the code-point domain by UTF-8 encoded
// length, per the lowering algorithm in the component design.
var utf8LengthClasses = []runeRange{
	{0x000000, 0x00007F},
	{0x000080, 0x0007FF},
	{0x000800, 0x00FFFF},
	{0x010000, 0x10FFFF},
}

func codePointToUTF8(r rune) Node {
	n := utf8ByteLength(r)
	b := encodeUTF8(r, n)
	parts := make([]Node, n)
	for i, by := range b {
		parts[i] = RangeNode{Lo: by, Hi: by}
	}
	return leftLeaningConcat(parts)
}

func utf8ByteLength(r rune) int {
	switch {
	case r <= 0x7F:
		return 1
	case r <= 0x7FF:
		return 2
	case r <= 0xFFFF:
		return 3
	default:
		return 4
	}
}

// encodeUTF8 encodes r as exactly n UTF-8 bytes without validity checks
// (surrogate code points encode mechanically; the grammar never produces
// regexes over them in practice, but this keeps the range-splitting
// algorithm total).
func encodeUTF8(r rune, n int) []byte {
	switch n {
	case 1:
		return []byte{byte(r)}
	case 2:
		return []byte{
			byte(0xC0 | (r >> 6)),
			byte(0x80 | (r & 0x3F)),
		}
	case 3:
		return []byte{
			byte(0xE0 | (r >> 12)),
			byte(0x80 | ((r >> 6) & 0x3F)),
			byte(0x80 | (r & 0x3F)),
		}
	default:
		return []byte{
			byte(0xF0 | (r >> 18)),
			byte(0x80 | ((r >> 12) & 0x3F)),
			byte(0x80 | ((r >> 6) & 0x3F)),
			byte(0x80 | (r & 0x3F)),
		}
	}
}

// runeRangesToAST expands a sorted, coalesced set of code-point ranges into
// a byte-level AST: partition by UTF-8 length class, then recursively build
// each length-class fragment.
func runeRangesToAST(ranges []runeRange) (Node, error) {
	var frags []Node
	for _, r := range coalesceRanges(ranges) {
		for _, class := range utf8LengthClasses {
			lo := maxRune(r.Lo, class.Lo)
			hi := minRune(r.Hi, class.Hi)
			if lo > hi {
				continue
			}
			n := utf8ByteLength(lo)
			frags = append(frags, buildUTF8Range(encodeUTF8(lo, n), encodeUTF8(hi, n)))
		}
	}
	switch len(frags) {
	case 0:
		return Empty{}, nil
	case 1:
		return frags[0], nil
	default:
		return Normalize(&Union{Args: frags}), nil
	}
}

func maxRune(a, b rune) rune {
	if a > b {
		return a
	}
	return b
}

func minRune(a, b rune) rune {
	if a < b {
		return a
	}
	return b
}

// buildUTF8Range builds the byte-level AST fragment matching exactly the
// UTF-8 encodings of the code points between min and max, inclusive, given
// that min and max are equal-length byte sequences of the same length class.
func buildUTF8Range(min, max []byte) Node {
	n := len(min)
	if n == 1 {
		return RangeNode{Lo: min[0], Hi: max[0]}
	}
	if min[0] == max[0] {
		return &Concat{Args: []Node{
			RangeNode{Lo: min[0], Hi: min[0]},
			buildUTF8Range(min[1:], max[1:]),
		}}
	}

	prefix := &Concat{Args: []Node{
		RangeNode{Lo: min[0], Hi: min[0]},
		anyGreaterEqual(min[1:]),
	}}
	suffix := &Concat{Args: []Node{
		RangeNode{Lo: max[0], Hi: max[0]},
		anyLessEqual(max[1:]),
	}}
	parts := []Node{prefix, suffix}
	if min[0]+1 <= max[0]-1 {
		parts = append(parts, &Concat{Args: []Node{
			RangeNode{Lo: min[0] + 1, Hi: max[0] - 1},
			continuationBytes(n - 1),
		}})
	}
	return &Union{Args: parts}
}

// anyGreaterEqual matches any continuation-byte sequence (each byte in
// [0x80,0xBF]) of length len(min) that is >= min under big-endian byte
// comparison.
func anyGreaterEqual(min []byte) Node {
	if len(min) == 0 {
		return Empty{}
	}
	exact := &Concat{Args: []Node{
		RangeNode{Lo: min[0], Hi: min[0]},
		anyGreaterEqual(min[1:]),
	}}
	if min[0] >= 0xBF {
		return exact
	}
	rest := &Concat{Args: []Node{
		RangeNode{Lo: min[0] + 1, Hi: 0xBF},
		continuationBytes(len(min) - 1),
	}}
	return &Union{Args: []Node{exact, rest}}
}

// anyLessEqual is the symmetric counterpart of anyGreaterEqual: continuation
// sequences <= max.
func anyLessEqual(max []byte) Node {
	if len(max) == 0 {
		return Empty{}
	}
	exact := &Concat{Args: []Node{
		RangeNode{Lo: max[0], Hi: max[0]},
		anyLessEqual(max[1:]),
	}}
	if max[0] <= 0x80 {
		return exact
	}
	rest := &Concat{Args: []Node{
		RangeNode{Lo: 0x80, Hi: max[0] - 1},
		continuationBytes(len(max) - 1),
	}}
	return &Union{Args: []Node{exact, rest}}
}

// continuationBytes matches exactly k UTF-8 continuation bytes, each
// unconstrained within [0x80,0xBF].
func continuationBytes(k int) Node {
	if k == 0 {
		return Empty{}
	}
	parts := make([]Node, k)
	for i := range parts {
		parts[i] = RangeNode{Lo: 0x80, Hi: 0xBF}
	}
	return leftLeaningConcat(parts)
}
