package agg

import (
	"github.com/pkg/errors"

	"github.com/timpalpant/go-agg/internal/gray"
	"github.com/timpalpant/go-agg/internal/trie"
)

// checkSymProfile validates a node-indexed symmetric mixture.
func (g *Game[T]) checkSymProfile(s []T) error {
	if !g.IsSymmetric() {
		return errors.Errorf("the game is not symmetric (%d player classes)", len(g.playerClasses))
	}
	if len(s) != g.numActionNodes {
		return errors.Errorf("symmetric strategy has length %d, want %d", len(s), g.numActionNodes)
	}
	for i, p := range s {
		if g.ar.Sign(p) < 0 {
			return errors.Errorf("symmetric strategy has negative probability %s at node %d", g.ar.String(p), i)
		}
	}
	return nil
}

// GetSymMixedPayoff implements Oracle: the expected payoff to any one
// player of a symmetric game when everyone plays the node-indexed
// mixture s.
func (g *Game[T]) GetSymMixedPayoff(s []T) (T, error) {
	var zero T
	if err := g.checkSymProfile(s); err != nil {
		return zero, err
	}

	result := g.ar.Zero()
	for node := 0; node < g.numActionNodes; node++ {
		if g.ar.Sign(s[node]) > 0 {
			v, err := g.getSymV(node, s)
			if err != nil {
				return zero, err
			}
			result = g.ar.Add(result, g.ar.Mul(s[node], v))
		}
	}
	return result, nil
}

// GetSymPayoffVector implements Oracle: dest[node] is the expected
// payoff of playing node against the symmetric mixture s.
func (g *Game[T]) GetSymPayoffVector(dest []T, s []T) error {
	if err := g.checkSymProfile(s); err != nil {
		return err
	}
	if len(dest) != g.numActionNodes {
		return errors.Errorf("payoff vector has length %d, want %d", len(dest), g.numActionNodes)
	}
	for node := 0; node < g.numActionNodes; node++ {
		v, err := g.getSymV(node, s)
		if err != nil {
			return err
		}
		dest[node] = v
	}
	return nil
}

// getSymV is the expected payoff of playing the given action node
// against the symmetric mixture s.
func (g *Game[T]) getSymV(node int, s []T) (T, error) {
	var zero T
	selfAct := g.node2Action[node][0]
	if selfAct < 0 {
		return zero, errors.Errorf("action node %d is not in the shared action set", node)
	}
	numNei := len(g.neighbors[node])

	if !g.isPure[node] {
		// Aggregate through the trie: project one player's mixture,
		// raise it to the (n-1)-th power, then fuse in the querying
		// player's own contribution during the inner product.
		if g.numPlayers == 1 {
			cfg := g.projection[node][0][selfAct]
			u, ok := g.payoffs[node].Get(cfg)
			if !ok {
				return zero, errors.Errorf("configuration %v missing from payoffs of action node %d", cfg, node)
			}
			return u, nil
		}
		g.projectSym(node, s)
		dest := g.pr[g.numPlayers-1]
		g.projectedStrat[node][0].Power(g.numPlayers-1, dest, g.pr[g.numPlayers-2], numNei, g.composers[node])
		return dest.InnerProdKernel(g.projection[node][0][selfAct], numNei, g.composers[node], g.payoffs[node]), nil
	}

	// All neighbors are action nodes: integrate the multinomial
	// directly over compositions of the other n-1 players.
	support := make([]int, 0, numNei+1)
	nullProb := g.ar.One()
	self := -1
	for i, nb := range g.neighbors[node] {
		if nb == node {
			self = i
		}
		if g.ar.Sign(s[nb]) > 0 {
			support = append(support, i)
			nullProb = g.ar.Sub(nullProb, s[nb])
		}
	}
	if numNei < g.numActionNodes && g.ar.Sign(nullProb) > 0 {
		support = append(support, -1)
	}

	catProb := func(j int) T {
		if support[j] < 0 {
			return nullProb
		}
		return s[g.neighbors[node][support[j]]]
	}

	gc := gray.New(g.numPlayers-1, len(support))
	prob := g.powScalar(catProb(0), g.numPlayers-1)

	V := g.ar.Zero()
	cfg := g.keyPool.alloc(numNei)
	defer g.keyPool.free(cfg)
	for {
		comp := gc.Get()
		for i := range cfg {
			cfg[i] = 0
		}
		for j, pos := range support {
			if pos >= 0 {
				cfg[pos] = comp[j]
			}
		}
		if self >= 0 {
			cfg[self]++
		}
		u, ok := g.payoffs[node].Get(cfg)
		if !ok {
			return zero, errors.Errorf("configuration %v missing from payoffs of action node %d", cfg, node)
		}
		V = g.ar.Add(V, g.ar.Mul(prob, u))

		gc.Incr()
		if gc.EOF() {
			break
		}
		// O(1) multinomial update: one category gained a unit, one
		// lost one.
		comp = gc.Get()
		num := g.ar.Mul(g.ar.FromInt(comp[gc.D]+1), catProb(gc.I))
		den := g.ar.Mul(g.ar.FromInt(comp[gc.I]), catProb(gc.D))
		prob = g.ar.Div(g.ar.Mul(prob, num), den)
	}
	return V, nil
}

// projectSym projects the node-indexed symmetric mixture s for player
// 0 at the given node.
func (g *Game[T]) projectSym(node int, s []T) {
	ps := g.projectedStrat[node][0]
	ps.Reset()
	for j, a := range g.actionSets[0] {
		if g.ar.Sign(s[a]) > 0 {
			ps.Add(g.projection[node][0][j], s[a])
		}
	}
}

func (g *Game[T]) powScalar(x T, k int) T {
	result := g.ar.One()
	for i := 0; i < k; i++ {
		result = g.ar.Mul(result, x)
	}
	return result
}

// checkKSymProfile validates a per-class strategy vector.
func (g *Game[T]) checkKSymProfile(s [][]T) error {
	if len(s) != len(g.playerClasses) {
		return errors.Errorf("got %d class strategies for %d player classes", len(s), len(g.playerClasses))
	}
	for c, sc := range s {
		if len(sc) != len(g.uniqueActionSets[c]) {
			return errors.Errorf("class %d strategy has length %d, want %d", c, len(sc), len(g.uniqueActionSets[c]))
		}
		for i, p := range sc {
			if g.ar.Sign(p) < 0 {
				return errors.Errorf("class %d strategy has negative probability %s at index %d", c, g.ar.String(p), i)
			}
		}
	}
	return nil
}

// GetKSymMixedPayoff implements Oracle: the expected payoff to a
// player of the given class when every class c plays the mixture s[c].
func (g *Game[T]) GetKSymMixedPayoff(class int, s [][]T) (T, error) {
	var zero T
	if class < 0 || class >= len(g.playerClasses) {
		return zero, errors.Errorf("player class %d outside [0, %d)", class, len(g.playerClasses))
	}
	if err := g.checkKSymProfile(s); err != nil {
		return zero, err
	}

	result := g.ar.Zero()
	for act := range g.uniqueActionSets[class] {
		if g.ar.Sign(s[class][act]) > 0 {
			v, err := g.getKSymV(class, act, s, -1, -1)
			if err != nil {
				return zero, err
			}
			result = g.ar.Add(result, g.ar.Mul(s[class][act], v))
		}
	}
	return result, nil
}

// GetKSymPayoffVector implements Oracle.
func (g *Game[T]) GetKSymPayoffVector(dest []T, class int, s [][]T) error {
	if class < 0 || class >= len(g.playerClasses) {
		return errors.Errorf("player class %d outside [0, %d)", class, len(g.playerClasses))
	}
	if len(dest) != len(g.uniqueActionSets[class]) {
		return errors.Errorf("payoff vector has length %d, want %d", len(dest), len(g.uniqueActionSets[class]))
	}
	if err := g.checkKSymProfile(s); err != nil {
		return err
	}
	for act := range g.uniqueActionSets[class] {
		v, err := g.getKSymV(class, act, s, -1, -1)
		if err != nil {
			return err
		}
		dest[act] = v
	}
	return nil
}

// GetKSymJ implements Oracle: the k-symmetric Jacobian entry, with
// one player of class2 held to the pure action act2 while class1's
// payoff for act1 is evaluated.
func (g *Game[T]) GetKSymJ(class1, act1, class2, act2 int, s [][]T) (T, error) {
	var zero T
	if class1 < 0 || class1 >= len(g.playerClasses) {
		return zero, errors.Errorf("player class %d outside [0, %d)", class1, len(g.playerClasses))
	}
	if class2 < 0 || class2 >= len(g.playerClasses) {
		return zero, errors.Errorf("player class %d outside [0, %d)", class2, len(g.playerClasses))
	}
	if act2 < 0 || act2 >= len(g.uniqueActionSets[class2]) {
		return zero, errors.Errorf("action %d of class %d outside [0, %d)", act2, class2, len(g.uniqueActionSets[class2]))
	}
	if err := g.checkKSymProfile(s); err != nil {
		return zero, err
	}
	if class1 == class2 && len(g.playerClasses[class1]) <= 1 {
		// The forced player is the querying player itself.
		return g.ar.Zero(), nil
	}
	return g.getKSymV(class1, act1, s, class2, act2)
}

// getKSymV multiplies the per-class configuration distributions at
// uniqueActionSets[class][act] and integrates against the payoff
// table. class2/act2, when non-negative, force one player of class2
// to a pure action.
func (g *Game[T]) getKSymV(class, act int, s [][]T, class2, act2 int) (T, error) {
	if act < 0 || act >= len(g.uniqueActionSets[class]) {
		var zero T
		return zero, errors.Errorf("action %d of class %d outside [0, %d)", act, class, len(g.uniqueActionSets[class]))
	}
	node := g.uniqueActionSets[class][act]
	numNei := len(g.neighbors[node])

	if err := g.getSymConfigProb(0, s[0], class, act, g.symD, class2, act2); err != nil {
		var zero T
		return zero, err
	}
	for pc := 1; pc < len(g.playerClasses); pc++ {
		if err := g.getSymConfigProb(pc, s[pc], class, act, g.symTemp, class2, act2); err != nil {
			var zero T
			return zero, err
		}
		g.symD.MultiplyBy(g.symTemp, numNei, g.composers[node])
	}
	return g.symD.InnerProd(g.payoffs[node]), nil
}

// getSymConfigProb writes into dest the probability distribution over
// the neighborhood configurations of node uniqueActionSets[ownClass][act]
// contributed by the players of plClass, each playing the class
// mixture s. When plClass equals ownClass one player is withheld (the
// querying player, whose pure contribution act is applied instead);
// when plClass equals class2 another player is withheld and forced to
// act2.
func (g *Game[T]) getSymConfigProb(plClass int, s []T, ownClass, act int, dest *trie.Map[T], class2, act2 int) error {
	node := g.uniqueActionSets[ownClass][act]
	numPl := len(g.playerClasses[plClass])
	if plClass == ownClass {
		numPl--
	}
	if plClass == class2 {
		numPl--
	}
	if numPl < 0 {
		return errors.Errorf("player class %d has too few players to withhold from", plClass)
	}
	dest.Reset()
	numNei := len(g.neighbors[node])
	player := g.playerClasses[plClass][0]

	if !g.isPure[node] {
		ps := g.projectedStrat[node][player]
		ps.Reset()
		if numPl > 0 {
			for j := 0; j < g.actions[player]; j++ {
				if g.ar.Sign(s[j]) > 0 {
					ps.Add(g.projection[node][player][j], s[j])
				}
			}
			ps.Power(numPl, dest, g.pr[0], numNei, g.composers[node])
		}
		if plClass == ownClass {
			g.applyPure(dest, g.projection[node][player][act], numNei, g.composers[node])
		}
		if plClass == class2 {
			g.applyPure(dest, g.projection[node][player][act2], numNei, g.composers[node])
		}
		return nil
	}

	// Pure node: Gray-code integration over the class's compositions.
	self := -1
	ind2 := -1
	support := make([]int, 0, numNei+1)
	nullProb := g.ar.One()
	for i, nb := range g.neighbors[node] {
		if nb == node {
			self = i
		}
		if class2 >= 0 && nb == g.uniqueActionSets[class2][act2] {
			ind2 = i
		}
		a := g.node2Action[nb][player]
		if a >= 0 && g.ar.Sign(s[a]) > 0 {
			support = append(support, i)
			nullProb = g.ar.Sub(nullProb, s[a])
		}
	}
	if g.ar.Sign(nullProb) > 0 {
		support = append(support, -1)
	}

	catProb := func(j int) T {
		if support[j] < 0 {
			return nullProb
		}
		return s[g.node2Action[g.neighbors[node][support[j]]][player]]
	}

	gc := gray.New(numPl, len(support))
	prob := g.powScalar(catProb(0), numPl)

	cfg := g.keyPool.alloc(numNei)
	defer g.keyPool.free(cfg)
	for {
		comp := gc.Get()
		for i := range cfg {
			cfg[i] = 0
		}
		for j, pos := range support {
			if pos >= 0 {
				cfg[pos] = comp[j]
			}
		}
		if plClass == ownClass && self >= 0 {
			cfg[self]++
		}
		if plClass == class2 && ind2 >= 0 {
			cfg[ind2]++
		}
		dest.Add(cfg, prob)

		gc.Incr()
		if gc.EOF() {
			break
		}
		comp = gc.Get()
		num := g.ar.Mul(g.ar.FromInt(comp[gc.D]+1), catProb(gc.I))
		den := g.ar.Mul(g.ar.FromInt(comp[gc.I]), catProb(gc.D))
		prob = g.ar.Div(g.ar.Mul(prob, num), den)
	}
	return nil
}

// applyPure multiplies dest by the singleton distribution of one pure
// contribution, or initializes dest with it if dest is empty.
func (g *Game[T]) applyPure(dest *trie.Map[T], proj []int, arity int, comp []trie.Composer) {
	pure := trie.New(g.ar)
	pure.Add(proj, g.ar.One())
	if dest.Size() > 0 {
		dest.MultiplyBy(pure, arity, comp)
	} else {
		dest.CopyFrom(pure)
	}
}
