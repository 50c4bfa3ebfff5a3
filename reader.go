package agg

import (
	"bufio"
	"io"
	"strconv"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/go-agg/num"
)

// token is one whitespace-separated field of a game file, with its
// source line for error context. Brackets are always their own token,
// even when written flush against a number.
type token struct {
	text string
	line int
}

type scanner struct {
	tokens []token
	pos    int
}

func newScanner(r io.Reader) (*scanner, error) {
	br := bufio.NewReader(r)
	s := &scanner{}
	line := 1
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			s.tokens = append(s.tokens, token{string(cur), line})
			cur = nil
		}
	}
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			flush()
			return s, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading game file")
		}
		switch {
		case c == commentChar:
			flush()
			for {
				c, err := br.ReadByte()
				if err == io.EOF {
					return s, nil
				}
				if err != nil {
					return nil, errors.Wrap(err, "reading game file")
				}
				if c == '\n' {
					line++
					break
				}
			}
		case c == '\n':
			flush()
			line++
		case c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f':
			flush()
		case c == lBracket || c == rBracket:
			flush()
			s.tokens = append(s.tokens, token{string(c), line})
		default:
			cur = append(cur, c)
		}
	}
}

const (
	commentChar = '#'
	lBracket    = '['
	rBracket    = ']'
)

func (s *scanner) next(what string) (token, error) {
	if s.pos >= len(s.tokens) {
		return token{}, errors.Errorf("unexpected end of file while reading %s", what)
	}
	t := s.tokens[s.pos]
	s.pos++
	return t, nil
}

func (s *scanner) nextInt(what string) (int, error) {
	t, err := s.next(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, errors.Errorf("expected integer for %s, got %q (line %d)", what, t.text, t.line)
	}
	return n, nil
}

func nextValue[T any](s *scanner, ar num.Arith[T], what string) (T, error) {
	var zero T
	t, err := s.next(what)
	if err != nil {
		return zero, err
	}
	v, err := ar.Parse(t.text)
	if err != nil {
		return zero, errors.Errorf("expected number for %s, got %q (line %d)", what, t.text, t.line)
	}
	return v, nil
}

func (s *scanner) expect(c byte, what string) error {
	t, err := s.next(what)
	if err != nil {
		return err
	}
	if len(t.text) != 1 || t.text[0] != c {
		return errors.Errorf("expected %q while reading %s, got %q (line %d)", string(c), what, t.text, t.line)
	}
	return nil
}

// ReadGame parses the textual AGG format and constructs the game.
// The format is whitespace-separated; # starts a comment that runs to
// the end of the line and may appear between any two tokens.
func ReadGame[T any](r io.Reader, ar num.Arith[T]) (*Game[T], error) {
	s, err := newScanner(r)
	if err != nil {
		return nil, err
	}

	def := GameDef[T]{}
	if def.NumPlayers, err = s.nextInt("the number of players"); err != nil {
		return nil, err
	}
	if def.NumActionNodes, err = s.nextInt("the number of action nodes"); err != nil {
		return nil, err
	}
	if def.NumFuncNodes, err = s.nextInt("the number of function nodes"); err != nil {
		return nil, err
	}
	if def.NumPlayers < 1 {
		return nil, errors.Errorf("number of players must be positive, got %d", def.NumPlayers)
	}
	if def.NumActionNodes < 0 || def.NumFuncNodes < 0 {
		return nil, errors.Errorf("negative node count (S=%d, F=%d)", def.NumActionNodes, def.NumFuncNodes)
	}

	sizes := make([]int, def.NumPlayers)
	for i := range sizes {
		if sizes[i], err = s.nextInt(subject("the size of the action set of player", i)); err != nil {
			return nil, err
		}
		if sizes[i] < 1 {
			return nil, errors.Errorf("player %d has action set size %d", i, sizes[i])
		}
	}

	def.ActionSets = make([][]int, def.NumPlayers)
	for i := range def.ActionSets {
		def.ActionSets[i] = make([]int, sizes[i])
		for j := range def.ActionSets[i] {
			a, err := s.nextInt(subjectAt("the node index of action", j, "of player", i))
			if err != nil {
				return nil, err
			}
			def.ActionSets[i][j] = a
		}
	}

	numNodes := def.NumActionNodes + def.NumFuncNodes
	def.Neighbors = make([][]int, numNodes)
	for v := range def.Neighbors {
		count, err := s.nextInt(subject("the size of the neighbor list of node", v))
		if err != nil {
			return nil, err
		}
		if count < 0 {
			return nil, errors.Errorf("node %d has negative neighbor count %d", v, count)
		}
		def.Neighbors[v] = make([]int, count)
		for j := range def.Neighbors[v] {
			nb, err := s.nextInt(subjectAt("neighbor", j, "of node", v))
			if err != nil {
				return nil, err
			}
			def.Neighbors[v][j] = nb
		}
	}

	def.Funcs = make([]ProjFunc, def.NumFuncNodes)
	for i := range def.Funcs {
		tag, err := s.nextInt(subject("the type of function node", def.NumActionNodes+i))
		if err != nil {
			return nil, err
		}
		f := ProjFunc{Kind: FuncKind(tag)}
		switch f.Kind {
		case FuncSum, FuncExist:
		case FuncMatch, FuncSumMod, FuncPower:
			if f.Param, err = s.nextInt(subject("the parameter of function node", def.NumActionNodes+i)); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("unknown projection function tag %d for function node %d", tag, def.NumActionNodes+i)
		}
		def.Funcs[i] = f
	}

	def.Payoffs = make([]PayoffDef[T], def.NumActionNodes)
	for v := range def.Payoffs {
		kind, err := s.nextInt(subject("the payoff type of action node", v))
		if err != nil {
			return nil, err
		}
		switch PayoffKind(kind) {
		case PayoffComplete:
			if def.Payoffs[v], err = readCompletePayoff(s, ar, v); err != nil {
				return nil, err
			}
		case PayoffMapping:
			if def.Payoffs[v], err = readMappingPayoff(s, ar, v, len(def.Neighbors[v])); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("unknown payoff type %d for action node %d", kind, v)
		}
	}

	glog.V(1).Infof("Parsed AGG file: %d players, %d action nodes, %d function nodes",
		def.NumPlayers, def.NumActionNodes, def.NumFuncNodes)
	return NewGame(ar, def)
}

func readCompletePayoff[T any](s *scanner, ar num.Arith[T], node int) (PayoffDef[T], error) {
	def := PayoffDef[T]{Kind: PayoffComplete}
	count, err := s.nextInt(subject("the number of payoff values of action node", node))
	if err != nil {
		return def, err
	}
	if count < 0 {
		return def, errors.Errorf("action node %d has negative payoff count %d", node, count)
	}
	def.Values = make([]T, count)
	for i := range def.Values {
		if def.Values[i], err = nextValue(s, ar, subjectAt("payoff value", i, "of action node", node)); err != nil {
			return def, err
		}
	}
	return def, nil
}

func readMappingPayoff[T any](s *scanner, ar num.Arith[T], node, arity int) (PayoffDef[T], error) {
	def := PayoffDef[T]{Kind: PayoffMapping}
	count, err := s.nextInt(subject("the number of configuration-value pairs of action node", node))
	if err != nil {
		return def, err
	}
	if count < 0 {
		return def, errors.Errorf("action node %d has negative payoff count %d", node, count)
	}
	def.Entries = make([]PayoffEntry[T], count)
	for i := range def.Entries {
		if err := s.expect(lBracket, subject("a configuration of action node", node)); err != nil {
			return def, err
		}
		cfg := make([]int, arity)
		for j := range cfg {
			if cfg[j], err = s.nextInt(subjectAt("element", j, "of a configuration of action node", node)); err != nil {
				return def, err
			}
		}
		if err := s.expect(rBracket, subject("a configuration of action node", node)); err != nil {
			return def, err
		}
		u, err := nextValue(s, ar, subject("the utility value of a configuration of action node", node))
		if err != nil {
			return def, err
		}
		def.Entries[i] = PayoffEntry[T]{Config: cfg, Value: u}
	}
	return def, nil
}

func subject(what string, i int) string {
	return what + " " + strconv.Itoa(i)
}

func subjectAt(what string, i int, of string, j int) string {
	return what + " " + strconv.Itoa(i) + " " + of + " " + strconv.Itoa(j)
}
