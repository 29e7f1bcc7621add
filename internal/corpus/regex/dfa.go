package regex

import (
	"fmt"
	"sort"
	"strings"
)

// Transition is one outgoing DFA edge: bytes in [Lo,Hi] go to Target.
// Transitions within a state are sorted by Lo and pairwise disjoint.
type Transition struct {
	Lo, Hi byte
	Target int
}

// DFA is the compiled automaton: states [0,NumStates), a start state, an
// accept set, and per-state sorted disjoint-range transitions.
type DFA struct {
	NumStates   int
	Start       int
	Accept      map[int]bool
	Transitions [][]Transition
}

// IsAccept reports whether state is an accept state.
func (d *DFA) IsAccept(state int) bool { return d.Accept[state] }

// NextState binary-searches state's transitions for the one covering b.
func (d *DFA) NextState(state int, b byte) (int, bool) {
	ts := d.Transitions[state]
	i := sort.Search(len(ts), func(i int) bool { return ts[i].Lo > b })
	if i > 0 && ts[i-1].Lo <= b && b <= ts[i-1].Hi {
		return ts[i-1].Target, true
	}
	return 0, false
}

// Match reports whether bs is accepted by the DFA end to end.
func (d *DFA) Match(bs []byte) bool {
	state := d.Start
	for _, b := range bs {
		next, ok := d.NextState(state, b)
		if !ok {
			return false
		}
		state = next
	}
	return d.IsAccept(state)
}

// posSet is a canonicalized, sorted set of followpos positions, used both
// as a DFA-state identity and as a map key (via its string form).
type posSet struct {
	sorted []int
}

func newPosSet(m map[int]struct{}) posSet {
	s := make([]int, 0, len(m))
	for p := range m {
		s = append(s, p)
	}
	sort.Ints(s)
	return posSet{sorted: s}
}

func (s posSet) key() string {
	var b strings.Builder
	for i, p := range s.sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", p)
	}
	return b.String()
}

func (s posSet) contains(p int) bool {
	i := sort.SearchInts(s.sorted, p)
	return i < len(s.sorted) && s.sorted[i] == p
}

type markState struct {
	leafMap   map[int]RangeNode
	followpos map[int]map[int]struct{}
	curPos    int
}

func unionSet(dst, src map[int]struct{}) {
	for p := range src {
		dst[p] = struct{}{}
	}
}

func copySet(src map[int]struct{}) map[int]struct{} {
	dst := make(map[int]struct{}, len(src))
	unionSet(dst, src)
	return dst
}

func (m *markState) addFollowpos(p int, targets map[int]struct{}) {
	set, ok := m.followpos[p]
	if !ok {
		set = make(map[int]struct{})
		m.followpos[p] = set
	}
	unionSet(set, targets)
}

// mark computes firstpos/lastpos/nullable for n (a DFS over the augmented
// AST), assigning leaf positions and populating followpos as a side effect.
func (m *markState) mark(n Node) (firstpos, lastpos map[int]struct{}, nullable bool) {
	switch v := n.(type) {
	case Empty:
		return map[int]struct{}{}, map[int]struct{}{}, true
	case RangeNode:
		pos := m.curPos
		m.curPos++
		m.leafMap[pos] = v
		fp := map[int]struct{}{pos: {}}
		return fp, copySet(fp), false
	case *Union:
		fp := map[int]struct{}{}
		lp := map[int]struct{}{}
		for _, arg := range v.Args {
			f, l, n := m.mark(arg)
			unionSet(fp, f)
			unionSet(lp, l)
			nullable = nullable || n
		}
		return fp, lp, nullable
	case *Concat:
		if len(v.Args) != 2 {
			panic("regex: non-binary Concat reached DFA construction")
		}
		f0, l0, n0 := m.mark(v.Args[0])
		f1, l1, n1 := m.mark(v.Args[1])
		fp := copySet(f0)
		if n0 {
			unionSet(fp, f1)
		}
		lp := copySet(l1)
		if n1 {
			unionSet(lp, l0)
		}
		for p := range l0 {
			m.addFollowpos(p, f1)
		}
		return fp, lp, n0 && n1
	case *Star:
		f, l, _ := m.mark(v.Arg)
		for p := range l {
			m.addFollowpos(p, f)
		}
		return copySet(f), copySet(l), true
	default:
		panic("regex: unknown AST node in DFA construction")
	}
}

// txRange is an outgoing-transition-under-construction range, using int
// bounds internally so that Hi+1 == 256 does not overflow a byte during the
// range-splitting sweep.
type txRange struct {
	lo, hi  int
	targets map[int]struct{}
}

// insertLeafTransition performs the disjoint-range-splitting insert
// described by the AST->DFA component design: splits any existing entries
// overlapping [lo,hi], merging follow-sets on the overlapping portion.
func insertLeafTransition(entries []txRange, lo, hi int, targets map[int]struct{}) []txRange {
	var result []txRange
	remLo, remHi := lo, hi

	for i := 0; i < len(entries); i++ {
		e := entries[i]
		if remLo > remHi || remHi < e.lo {
			result = append(result, e)
			continue
		}
		omin := maxInt(remLo, e.lo)
		omax := minInt(remHi, e.hi)
		if omin > omax {
			result = append(result, e)
			continue
		}
		if remLo < omin {
			result = append(result, txRange{remLo, omin - 1, copySet(targets)})
		}
		if e.lo < omin {
			result = append(result, txRange{e.lo, omin - 1, e.targets})
		}
		merged := copySet(targets)
		unionSet(merged, e.targets)
		result = append(result, txRange{omin, omax, merged})
		if omax < e.hi {
			result = append(result, txRange{omax + 1, e.hi, e.targets})
		}
		remLo = omax + 1
	}
	if remLo <= remHi {
		result = append(result, txRange{remLo, remHi, targets})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].lo < result[j].lo })
	return result
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Compile lowers a normalized byte-level AST to a minimized DFA, following
// the McNaughton-Yamada-Thompson followpos construction: augment with a
// sentinel end marker, compute firstpos/lastpos/nullable/followpos, subset
// construction over position sets with on-the-fly range splitting, then an
// iterative equivalent-state merge pass.
func Compile(ast Node) (*DFA, error) {
	sentinel := RangeNode{Lo: 0, Hi: 0}
	augmented := &Concat{Args: []Node{ast, sentinel}}

	m := &markState{
		leafMap:   make(map[int]RangeNode),
		followpos: make(map[int]map[int]struct{}),
	}
	rootFirst, _, _ := m.mark(augmented)
	finalPos := m.curPos - 1

	var states []posSet
	seen := map[string]int{}

	start := newPosSet(rootFirst)
	states = append(states, start)
	seen[start.key()] = 0

	accept := map[int]bool{}
	if start.contains(finalPos) {
		accept[0] = true
	}

	var transitionsOut [][]Transition
	transitionsOut = append(transitionsOut, nil)

	for s := 0; s < len(states); s++ {
		state := states[s]
		var entries []txRange
		for _, p := range state.sorted {
			if p == finalPos {
				continue
			}
			r := m.leafMap[p]
			entries = insertLeafTransition(entries, int(r.Lo), int(r.Hi), m.followpos[p])
		}

		edges := make([]Transition, 0, len(entries))
		for _, e := range entries {
			targetSet := newPosSet(e.targets)
			key := targetSet.key()
			targetID, ok := seen[key]
			if !ok {
				targetID = len(states)
				seen[key] = targetID
				states = append(states, targetSet)
				transitionsOut = append(transitionsOut, nil)
				if targetSet.contains(finalPos) {
					accept[targetID] = true
				}
			}
			edges = append(edges, Transition{Lo: byte(e.lo), Hi: byte(e.hi), Target: targetID})
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].Lo < edges[j].Lo })
		transitionsOut[s] = edges
	}

	if len(accept) == 0 {
		return nil, &InvariantViolation{Message: "DFA construction produced no accept states"}
	}

	dfa := &DFA{
		NumStates:   len(states),
		Start:       0,
		Accept:      accept,
		Transitions: transitionsOut,
	}
	return mergeIdenticalStates(dfa), nil
}

// InvariantViolation signals an internal invariant broken by a bug, not by
// user input: Compile returns it when construction yields an empty accept
// set. (A Rejected token during search recursion is reported separately, by
// search.InvariantViolation.)
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string { return "regex: invariant violation: " + e.Message }

// stateSignature is the merge key from the component design: the sorted
// transition list (by lo, hi, target) plus the accept flag.
func stateSignature(transitions []Transition, accept bool) string {
	var b strings.Builder
	if accept {
		b.WriteByte('A')
	} else {
		b.WriteByte('N')
	}
	for _, t := range transitions {
		fmt.Fprintf(&b, "|%d-%d->%d", t.Lo, t.Hi, t.Target)
	}
	return b.String()
}

// mergeIdenticalStates iteratively collapses states with identical
// (sorted transitions, accept) signatures to a quotient automaton. This is
// a pragmatic pass, not Hopcroft's algorithm: it removes duplicate states
// created by UTF-8 fragment unions but does not guarantee minimality.
func mergeIdenticalStates(dfa *DFA) *DFA {
	for {
		uniqueStates := map[string]int{}
		oldToNew := make([]int, dfa.NumStates)
		changed := false

		for s := 0; s < dfa.NumStates; s++ {
			// Signatures reference old target IDs; this matches the
			// reference implementation's pass-by-pass renumbering.
			sig := stateSignature(dfa.Transitions[s], dfa.Accept[s])
			if newID, ok := uniqueStates[sig]; ok {
				oldToNew[s] = newID
				changed = true
			} else {
				newID := len(uniqueStates)
				uniqueStates[sig] = newID
				oldToNew[s] = newID
			}
		}

		if !changed {
			return dfa
		}

		numNew := len(uniqueStates)
		newTransitions := make([][]Transition, numNew)
		newAccept := map[int]bool{}
		seenNew := make([]bool, numNew)
		for s := 0; s < dfa.NumStates; s++ {
			newID := oldToNew[s]
			if dfa.Accept[s] {
				newAccept[newID] = true
			}
			if seenNew[newID] {
				continue
			}
			seenNew[newID] = true
			edges := make([]Transition, len(dfa.Transitions[s]))
			for i, t := range dfa.Transitions[s] {
				edges[i] = Transition{Lo: t.Lo, Hi: t.Hi, Target: oldToNew[t.Target]}
			}
			newTransitions[newID] = edges
		}

		dfa = &DFA{
			NumStates:   numNew,
			Start:       oldToNew[dfa.Start],
			Accept:      newAccept,
			Transitions: newTransitions,
		}
	}
}
