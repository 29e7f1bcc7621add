package regex

// Engine bundles a parsed pattern's normalized AST and compiled DFA, the
// unit the search driver and embedding surface operate on.
type Engine struct {
	AST Node
	DFA *DFA
}

// Build parses, lowers, and compiles src in one step.
func Build(src string) (*Engine, error) {
	pat, err := Parse(src)
	if err != nil {
		return nil, err
	}
	ast, err := Lower(pat)
	if err != nil {
		return nil, err
	}
	dfa, err := Compile(ast)
	if err != nil {
		return nil, err
	}
	return &Engine{AST: ast, DFA: dfa}, nil
}

// MatchesEverything reports whether the DFA's start state already accepts,
// the "empty-language shortcut": every sentence matches and the search
// driver must not descend into the trie (see the search driver's design
// notes on distinguishing ".*"/"a*" from "a+").
func (e *Engine) MatchesEverything() bool {
	return e.DFA.IsAccept(e.DFA.Start)
}
