package regex

// astMatches is a brute-force reference matcher over the byte-level AST,
// used only to cross-check dfa.Match(bs) <=> ast_matches(ast, bs) per the
// invariant in the testable-properties set. It enumerates every way the
// AST can consume bs entirely.
func astMatches(n Node, bs []byte) bool {
	for _, rest := range astConsume(n, bs) {
		if len(rest) == 0 {
			return true
		}
	}
	return false
}

// astConsume returns every possible remaining suffix after n consumes a
// prefix of bs.
func astConsume(n Node, bs []byte) [][]byte {
	switch v := n.(type) {
	case Empty:
		return [][]byte{bs}
	case RangeNode:
		if len(bs) == 0 || bs[0] < v.Lo || bs[0] > v.Hi {
			return nil
		}
		return [][]byte{bs[1:]}
	case *Union:
		var out [][]byte
		for _, arg := range v.Args {
			out = append(out, astConsume(arg, bs)...)
		}
		return out
	case *Concat:
		var out [][]byte
		for _, restAfterFirst := range astConsume(v.Args[0], bs) {
			out = append(out, astConsume(v.Args[1], restAfterFirst)...)
		}
		return out
	case *Star:
		// Bounded unrolling: enough for the short byte strings tests use.
		results := map[string][]byte{string(bs): bs}
		frontier := [][]byte{bs}
		for iter := 0; iter < len(bs)+1 && len(frontier) > 0; iter++ {
			var next [][]byte
			for _, rem := range frontier {
				for _, after := range astConsume(v.Arg, rem) {
					if len(after) == len(rem) {
						continue // avoid infinite loop on nullable child
					}
					if _, seen := results[string(after)]; !seen {
						results[string(after)] = after
						next = append(next, after)
					}
				}
			}
			frontier = next
		}
		out := make([][]byte, 0, len(results))
		for _, r := range results {
			out = append(out, r)
		}
		return out
	default:
		return nil
	}
}
