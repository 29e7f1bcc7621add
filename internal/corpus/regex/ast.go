package regex

// Node is the byte-level AST: Empty, Range, Union, Concat, or Star.
type Node interface{ isNode() }

// Empty matches the empty string.
type Empty struct{}

func (Empty) isNode() {}

// RangeNode matches one byte b with Lo <= b <= Hi.
type RangeNode struct {
	Lo, Hi byte
}

func (RangeNode) isNode() {}

// Union matches any of Args. Normalize guarantees len(Args) >= 2.
type Union struct {
	Args []Node
}

func (*Union) isNode() {}

// Concat matches Args in sequence. Normalize folds this into a left-leaning
// binary shape before DFA construction.
type Concat struct {
	Args []Node
}

func (*Concat) isNode() {}

// Star matches zero or more repetitions of Arg.
type Star struct {
	Arg Node
}

func (*Star) isNode() {}

// Normalize collapses single-child unions/concats, discards empty branches
// where safe, and folds Concat into a left-leaning binary chain (the shape
// the followpos DFA builder expects).
func Normalize(n Node) Node {
	switch v := n.(type) {
	case Empty:
		return v
	case RangeNode:
		return v
	case *Star:
		return &Star{Arg: Normalize(v.Arg)}
	case *Union:
		flat := flattenUnion(v)
		switch len(flat) {
		case 0:
			return Empty{}
		case 1:
			return flat[0]
		default:
			return &Union{Args: flat}
		}
	case *Concat:
		flat := flattenConcat(v)
		nonEmpty := flat[:0:0]
		for _, c := range flat {
			if _, isEmpty := c.(Empty); isEmpty {
				continue
			}
			nonEmpty = append(nonEmpty, c)
		}
		if len(nonEmpty) == 0 {
			return Empty{}
		}
		return leftLeaningConcat(nonEmpty)
	default:
		return n
	}
}

func flattenUnion(u *Union) []Node {
	var out []Node
	for _, arg := range u.Args {
		norm := Normalize(arg)
		if inner, ok := norm.(*Union); ok {
			out = append(out, inner.Args...)
		} else {
			out = append(out, norm)
		}
	}
	return out
}

func flattenConcat(c *Concat) []Node {
	var out []Node
	for _, arg := range c.Args {
		norm := Normalize(arg)
		if inner, ok := norm.(*Concat); ok {
			out = append(out, flattenBinaryConcat(inner)...)
		} else {
			out = append(out, norm)
		}
	}
	return out
}

// flattenBinaryConcat unrolls an already-binary (or still n-ary) Concat node
// into its leaf sequence.
func flattenBinaryConcat(c *Concat) []Node {
	var out []Node
	for _, arg := range c.Args {
		if inner, ok := arg.(*Concat); ok {
			out = append(out, flattenBinaryConcat(inner)...)
		} else {
			out = append(out, arg)
		}
	}
	return out
}

// leftLeaningConcat folds a flat sequence into nested binary Concat nodes,
// e.g. [a,b,c] -> Concat(Concat(a,b),c).
func leftLeaningConcat(nodes []Node) Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	acc := nodes[0]
	for _, n := range nodes[1:] {
		acc = &Concat{Args: []Node{acc, n}}
	}
	return acc
}
