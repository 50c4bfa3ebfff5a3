// Package agg implements the Action Graph Game (AGG) representation
// of simultaneous-move games and a polynomial-time expected-payoff
// oracle over it.
//
// An AGG compresses a game by letting players share actions, routing
// payoff dependence through an action graph, and aggregating counts
// through function nodes. Payoff evaluation under a mixed profile
// works on distributions over neighborhood configurations rather than
// on the exponential normal form.
package agg

import (
	"fmt"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/go-agg/internal/trie"
	"github.com/timpalpant/go-agg/num"
)

// PayoffKind is the input form of one action node's payoff table.
type PayoffKind int

const (
	// PayoffComplete lists payoffs densely, in ascending order of the
	// node's reachable configurations.
	PayoffComplete PayoffKind = iota
	// PayoffMapping lists (configuration, payoff) pairs explicitly.
	PayoffMapping
)

// PayoffEntry is one (configuration, payoff) pair of a MAPPING table.
type PayoffEntry[T any] struct {
	Config []int
	Value  T
}

// PayoffDef is the payoff table input for one action node.
type PayoffDef[T any] struct {
	Kind PayoffKind
	// Values holds the dense payoff list for PayoffComplete.
	Values []T
	// Entries holds the pairs for PayoffMapping.
	Entries []PayoffEntry[T]
}

// GameDef is the in-memory description a Game is constructed from.
// Node indices [0, NumActionNodes) are action nodes and indices
// [NumActionNodes, NumActionNodes+NumFuncNodes) are function nodes.
type GameDef[T any] struct {
	NumPlayers     int
	NumActionNodes int
	NumFuncNodes   int
	// ActionSets[p] lists player p's actions as strictly ascending
	// action-node indices.
	ActionSets [][]int
	// Neighbors[v] is the ordered neighbor list of node v, one entry
	// per position of v's configuration key.
	Neighbors [][]int
	// Funcs[g] is the projection function of function node
	// NumActionNodes+g.
	Funcs []ProjFunc
	// Payoffs[v] is the payoff table input for action node v.
	Payoffs []PayoffDef[T]
}

// Game is a constructed action graph game. All precomputed tables are
// immutable after construction except the projected-strategy and
// intermediate-distribution scratch buffers, which every oracle call
// rewrites; hence oracle calls must not run concurrently on one Game.
type Game[T any] struct {
	ar num.Arith[T]

	numPlayers     int
	actions        []int
	strategyOffset []int
	totalActions   int
	maxActions     int

	numActionNodes int
	numFuncNodes   int
	actionSets     [][]int
	neighbors      [][]int
	funcs          []ProjFunc
	// composers[v][i] combines contributions at position i of action
	// node v's configuration key.
	composers [][]trie.Composer
	isPure    []bool
	// node2Action[v][p] is player p's local index of action node v,
	// or -1 if v is not in p's action set.
	node2Action [][]int

	// projection[v][p][a] is the contribution vector of player p's
	// action a to the configuration of action node v.
	projection [][][][]int
	// projectedStrat[v][p] is scratch holding p's mixed strategy
	// projected onto v's configuration space.
	projectedStrat [][]*trie.Map[T]
	payoffs        []*trie.Map[T]
	// porder[p][a] is the player ordering used to multiply projected
	// strategies at node actionSets[p][a]: p first, then ascending
	// projected support size.
	porder [][][]int

	// pr[k] is the distribution over configurations after applying
	// the first k+1 players in porder.
	pr []*trie.Map[T]
	// symD and symTemp are scratch for the k-symmetric queries.
	symD, symTemp *trie.Map[T]
	keyPool       intSlicePool

	uniqueActionSets   [][]int
	playerClasses      [][]int
	player2Class       []int
	numKSymActions     int
	kSymStrategyOffset []int
}

var _ Oracle[float64] = (*Game[float64])(nil)

// NewGame constructs a Game from def, precomputing projections,
// player orderings and payoff tables. A non-nil error means the
// definition is structurally invalid; no partially constructed game
// is returned.
func NewGame[T any](ar num.Arith[T], def GameDef[T]) (*Game[T], error) {
	n := def.NumPlayers
	numS := def.NumActionNodes
	numF := def.NumFuncNodes
	if n < 1 {
		return nil, errors.Errorf("number of players must be positive, got %d", n)
	}
	if numS < 0 || numF < 0 {
		return nil, errors.Errorf("negative node count (S=%d, F=%d)", numS, numF)
	}
	if len(def.ActionSets) != n {
		return nil, errors.Errorf("got %d action sets for %d players", len(def.ActionSets), n)
	}
	if len(def.Neighbors) != numS+numF {
		return nil, errors.Errorf("got %d neighbor lists for %d nodes", len(def.Neighbors), numS+numF)
	}
	if len(def.Funcs) != numF {
		return nil, errors.Errorf("got %d projection functions for %d function nodes", len(def.Funcs), numF)
	}
	if len(def.Payoffs) != numS {
		return nil, errors.Errorf("got %d payoff tables for %d action nodes", len(def.Payoffs), numS)
	}

	g := &Game[T]{
		ar:             ar,
		numPlayers:     n,
		actions:        make([]int, n),
		strategyOffset: make([]int, n+1),
		numActionNodes: numS,
		numFuncNodes:   numF,
		actionSets:     def.ActionSets,
		neighbors:      def.Neighbors,
		funcs:          def.Funcs,
	}

	for i, as := range def.ActionSets {
		if len(as) == 0 {
			return nil, errors.Errorf("player %d has an empty action set", i)
		}
		for j, a := range as {
			if a < 0 || a >= numS {
				return nil, errors.Errorf("action %d of player %d references node %d, outside [0, %d)", j, i, a, numS)
			}
			if j > 0 && as[j-1] >= a {
				return nil, errors.Errorf("action set for player %d is not in ascending order", i)
			}
		}
		g.actions[i] = len(as)
		g.totalActions += len(as)
		g.strategyOffset[i+1] = g.strategyOffset[i] + len(as)
		if len(as) > g.maxActions {
			g.maxActions = len(as)
		}
	}

	for v, nb := range def.Neighbors {
		for _, w := range nb {
			if w < 0 || w >= numS+numF {
				return nil, errors.Errorf("neighbor %d of node %d is outside [0, %d)", w, v, numS+numF)
			}
		}
	}
	for i, f := range def.Funcs {
		if err := f.validate(); err != nil {
			return nil, errors.Wrapf(err, "function node %d", numS+i)
		}
	}

	g.setupClasses()
	anc, err := g.computeAncestors()
	if err != nil {
		return nil, err
	}
	g.setupNodes()
	g.setupProjections(anc)
	g.setupPorder()
	accept := g.computeAcceptanceSets()
	if err := g.buildPayoffs(def.Payoffs, accept); err != nil {
		return nil, err
	}

	g.pr = make([]*trie.Map[T], n)
	for k := range g.pr {
		g.pr[k] = trie.New(ar)
	}
	g.symD = trie.New(ar)
	g.symTemp = trie.New(ar)

	glog.V(1).Infof("Constructed AGG: %d players, %d action nodes, %d function nodes, %d total actions, %d player classes",
		n, numS, numF, g.totalActions, len(g.playerClasses))
	return g, nil
}

// setupClasses partitions players into equivalence classes by action
// set. Action sets are already sorted (ascending order is enforced),
// so identical sets compare equal directly.
func (g *Game[T]) setupClasses() {
	type classed struct {
		actionSet []int
		player    int
	}
	byClass := make([]classed, g.numPlayers)
	for i, as := range g.actionSets {
		byClass[i] = classed{as, i}
	}
	sort.Slice(byClass, func(i, j int) bool {
		a, b := byClass[i].actionSet, byClass[j].actionSet
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return byClass[i].player < byClass[j].player
	})

	g.player2Class = make([]int, g.numPlayers)
	g.kSymStrategyOffset = []int{0}
	for _, c := range byClass {
		last := len(g.uniqueActionSets) - 1
		if last >= 0 && equalInts(g.uniqueActionSets[last], c.actionSet) {
			g.playerClasses[last] = append(g.playerClasses[last], c.player)
		} else {
			g.uniqueActionSets = append(g.uniqueActionSets, c.actionSet)
			g.playerClasses = append(g.playerClasses, []int{c.player})
			g.numKSymActions += len(c.actionSet)
			g.kSymStrategyOffset = append(g.kSymStrategyOffset, g.numKSymActions)
			last++
		}
		g.player2Class[c.player] = last
	}
}

// computeAncestors walks the neighbor graph of every function node
// and returns, per function node, the multiset of action-node
// ancestors (multiplicity = number of distinct paths). Cycles among
// function nodes and projection-signature mismatches are fatal.
func (g *Game[T]) computeAncestors() ([]map[int]int, error) {
	anc := make([]map[int]int, g.numFuncNodes)
	var path []int
	for i := 0; i < g.numFuncNodes; i++ {
		anc[i] = make(map[int]int)
		path = path[:0]
		if err := g.collectAncestors(anc[i], g.numActionNodes+i, path); err != nil {
			return nil, err
		}
	}
	return anc, nil
}

func (g *Game[T]) collectAncestors(dest map[int]int, node int, path []int) error {
	if node < g.numActionNodes {
		dest[node]++
		return nil
	}
	for _, p := range path {
		if node == p {
			return errors.Errorf("cycle of projected nodes at node %d", node)
		}
	}

	path = append(path, node)
	for _, nb := range g.neighbors[node] {
		if nb >= g.numActionNodes && g.funcs[nb-g.numActionNodes] != g.funcs[node-g.numActionNodes] {
			return errors.Errorf("projection type mismatch: node %d and its neighbor %d", node, nb)
		}
		if err := g.collectAncestors(dest, nb, path); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game[T]) setupNodes() {
	g.isPure = make([]bool, g.numActionNodes)
	g.composers = make([][]trie.Composer, g.numActionNodes)
	for v := 0; v < g.numActionNodes; v++ {
		g.isPure[v] = true
		g.composers[v] = make([]trie.Composer, len(g.neighbors[v]))
		for i, nb := range g.neighbors[v] {
			if nb < g.numActionNodes {
				g.composers[v][i] = SumFunc
			} else {
				g.isPure[v] = false
				g.composers[v][i] = g.funcs[nb-g.numActionNodes]
			}
		}
	}

	g.node2Action = make([][]int, g.numActionNodes)
	for v := range g.node2Action {
		g.node2Action[v] = make([]int, g.numPlayers)
		for p := range g.node2Action[v] {
			g.node2Action[v][p] = -1
		}
	}
	for p, as := range g.actionSets {
		for j, v := range as {
			g.node2Action[v][p] = j
		}
	}
}

// setupProjections fills the projection tensor and the initial
// projected-strategy supports (one entry per distinct contribution
// vector, weighted by the number of actions producing it).
func (g *Game[T]) setupProjections(anc []map[int]int) {
	g.projection = make([][][][]int, g.numActionNodes)
	g.projectedStrat = make([][]*trie.Map[T], g.numActionNodes)
	for v := 0; v < g.numActionNodes; v++ {
		numNei := len(g.neighbors[v])
		g.projection[v] = make([][][]int, g.numPlayers)
		g.projectedStrat[v] = make([]*trie.Map[T], g.numPlayers)
		for p := 0; p < g.numPlayers; p++ {
			g.projection[v][p] = make([][]int, g.actions[p])
			g.projectedStrat[v][p] = trie.New(g.ar)
			for j, a := range g.actionSets[p] {
				proj := make([]int, numNei)
				for k, nb := range g.neighbors[v] {
					switch {
					case a == nb:
						proj[k] = 1
					case nb >= g.numActionNodes:
						f := g.funcs[nb-g.numActionNodes]
						proj[k] = f.Contribution(a, anc[nb-g.numActionNodes][a])
					}
				}
				g.projection[v][p][j] = proj
				g.projectedStrat[v][p].Add(proj, g.ar.One())
			}
		}
	}
}

// setupPorder orders, for every (player, action), the remaining
// players by ascending projected support size at that action's node,
// which keeps intermediate distributions small during multiplication.
func (g *Game[T]) setupPorder() {
	g.porder = make([][][]int, g.numPlayers)
	for p := 0; p < g.numPlayers; p++ {
		g.porder[p] = make([][]int, g.actions[p])
		for j := range g.porder[p] {
			v := g.actionSets[p][j]
			type weighted struct{ size, player int }
			order := make([]weighted, 0, g.numPlayers-1)
			for q := 0; q < g.numPlayers; q++ {
				if q != p {
					order = append(order, weighted{g.projectedStrat[v][q].Size(), q})
				}
			}
			sort.Slice(order, func(a, b int) bool {
				if order[a].size != order[b].size {
					return order[a].size < order[b].size
				}
				return order[a].player < order[b].player
			})
			perm := make([]int, g.numPlayers)
			perm[0] = p
			for k, w := range order {
				perm[k+1] = w.player
			}
			g.porder[p][j] = perm
		}
	}
}

// computeAcceptanceSets derives, per action node, the set of
// configurations reachable from the players' strategy choices: the
// keys at which a payoff must be specified. One pass per distinct
// sorted action set suffices.
func (g *Game[T]) computeAcceptanceSets() []*trie.Map[T] {
	accept := make([]*trie.Map[T], g.numActionNodes)
	for v := range accept {
		accept[v] = trie.New(g.ar)
	}

	scratch := make([]*trie.Map[T], g.numPlayers)
	for k := range scratch {
		scratch[k] = trie.New(g.ar)
	}

	done := make(map[string]bool)
	for p := 0; p < g.numPlayers; p++ {
		key := fmt.Sprint(g.actionSets[p])
		if done[key] {
			continue
		}
		done[key] = true
		for j, v := range g.actionSets[p] {
			arity := len(g.neighbors[v])
			scratch[0].Reset()
			scratch[0].Add(g.projection[v][p][j], g.ar.One())
			for k := 1; k < g.numPlayers; k++ {
				q := g.porder[p][j][k]
				scratch[k].Multiply(scratch[k-1], g.projectedStrat[v][q], arity, g.composers[v])
			}
			scratch[g.numPlayers-1].Visit(func(cfg []int, w T) {
				if _, ok := accept[v].Get(cfg); !ok {
					accept[v].Add(cfg, g.ar.Zero())
				}
			})
		}
	}
	return accept
}

// buildPayoffs admits the payoff table inputs against the acceptance
// sets. COMPLETE tables pair values with reachable configurations in
// ascending key order; MAPPING tables must name every reachable
// configuration exactly once and nothing else.
func (g *Game[T]) buildPayoffs(defs []PayoffDef[T], accept []*trie.Map[T]) error {
	g.payoffs = make([]*trie.Map[T], g.numActionNodes)
	for v, def := range defs {
		pay := trie.New(g.ar)
		switch def.Kind {
		case PayoffComplete:
			if len(def.Values) != accept[v].Size() {
				return errors.Errorf("action node %d: COMPLETE payoff has %d values but %d configurations are reachable",
					v, len(def.Values), accept[v].Size())
			}
			i := 0
			accept[v].Visit(func(cfg []int, w T) {
				pay.Add(cfg, def.Values[i])
				i++
			})
		case PayoffMapping:
			for _, e := range def.Entries {
				if len(e.Config) != len(g.neighbors[v]) {
					return errors.Errorf("action node %d: configuration %v has %d entries, want %d",
						v, e.Config, len(e.Config), len(g.neighbors[v]))
				}
				if _, ok := accept[v].Get(e.Config); !ok {
					return errors.Errorf("action node %d: configuration %v is not reachable", v, e.Config)
				}
				if _, ok := pay.Get(e.Config); ok {
					return errors.Errorf("action node %d: overwriting utility at %v", v, e.Config)
				}
				pay.Add(e.Config, e.Value)
			}
			var missing []int
			ok := true
			accept[v].Visit(func(cfg []int, w T) {
				if _, found := pay.Get(cfg); !found && ok {
					ok = false
					missing = append([]int(nil), cfg...)
				}
			})
			if !ok {
				return errors.Errorf("action node %d: utility at %v not specified", v, missing)
			}
		default:
			return errors.Errorf("action node %d: unknown payoff type %d", v, int(def.Kind))
		}
		g.payoffs[v] = pay
	}
	return nil
}

// NumPlayers implements Oracle.
func (g *Game[T]) NumPlayers() int { return g.numPlayers }

// NumActions implements Oracle.
func (g *Game[T]) NumActions(player int) int { return g.actions[player] }

// TotalActions implements Oracle.
func (g *Game[T]) TotalActions() int { return g.totalActions }

// NumActionNodes implements Oracle.
func (g *Game[T]) NumActionNodes() int { return g.numActionNodes }

// NumFunctionNodes implements Oracle.
func (g *Game[T]) NumFunctionNodes() int { return g.numFuncNodes }

// MaxActions returns the largest action set size of any player.
func (g *Game[T]) MaxActions() int { return g.maxActions }

// IsSymmetric implements Oracle.
func (g *Game[T]) IsSymmetric() bool {
	return len(g.playerClasses) == 1 && len(g.playerClasses[0]) == g.numPlayers
}

// NumPlayerClasses implements Oracle.
func (g *Game[T]) NumPlayerClasses() int { return len(g.playerClasses) }

// PlayerClass implements Oracle.
func (g *Game[T]) PlayerClass(player int) int { return g.player2Class[player] }

// ClassActionSet implements Oracle.
func (g *Game[T]) ClassActionSet(class int) []int { return g.uniqueActionSets[class] }

// NumClassPlayers returns the number of players in the given class.
func (g *Game[T]) NumClassPlayers(class int) int { return len(g.playerClasses[class]) }

// NumKSymActions returns the length of a flat k-symmetric strategy
// vector (the summed action set sizes over classes).
func (g *Game[T]) NumKSymActions() int { return g.numKSymActions }

// ActionSet returns the ascending action-node indices of a player.
func (g *Game[T]) ActionSet(player int) []int { return g.actionSets[player] }

// Neighbors returns the ordered neighbor list of a node.
func (g *Game[T]) Neighbors(node int) []int { return g.neighbors[node] }

// FunctionNode returns the projection function of function node
// NumActionNodes()+i.
func (g *Game[T]) FunctionNode(i int) ProjFunc { return g.funcs[i] }

// FirstAction returns the offset of a player's segment within a flat
// strategy profile.
func (g *Game[T]) FirstAction(player int) int { return g.strategyOffset[player] }

// FirstKSymAction returns the offset of a class's segment within a
// flat k-symmetric strategy vector.
func (g *Game[T]) FirstKSymAction(class int) int { return g.kSymStrategyOffset[class] }

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
