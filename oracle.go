package agg

import (
	"github.com/pkg/errors"

	"github.com/timpalpant/go-agg/internal/trie"
)

// checkProfile validates a full mixed strategy profile.
func (g *Game[T]) checkProfile(s []T) error {
	if len(s) != g.totalActions {
		return errors.Errorf("strategy profile has length %d, want %d", len(s), g.totalActions)
	}
	for i, p := range s {
		if g.ar.Sign(p) < 0 {
			return errors.Errorf("strategy profile has negative probability %s at index %d", g.ar.String(p), i)
		}
	}
	return nil
}

func (g *Game[T]) checkPlayer(player int) error {
	if player < 0 || player >= g.numPlayers {
		return errors.Errorf("player %d outside [0, %d)", player, g.numPlayers)
	}
	return nil
}

// doProjection rewrites projectedStrat[v][p] with player p's marginal
// of s, projected onto node v's configuration space.
func (g *Game[T]) doProjection(v, player int, s []T) {
	ps := g.projectedStrat[v][player]
	ps.Reset()
	for j := 0; j < g.actions[player]; j++ {
		if g.ar.Sign(s[j]) > 0 {
			ps.Add(g.projection[v][player][j], s[j])
		}
	}
}

func (g *Game[T]) doProjectionAll(v int, s []T) {
	for p := 0; p < g.numPlayers; p++ {
		g.doProjection(v, p, s[g.FirstAction(p):g.strategyOffset[p+1]])
	}
}

// computeP folds the projected strategies into pr following the
// precomputed player order for (player, act). If player2 is
// non-negative it is forced to the pure action act2, or skipped
// entirely when act2 < 0.
func (g *Game[T]) computeP(player, act, player2, act2 int) {
	v := g.actionSets[player][act]
	arity := len(g.neighbors[v])

	g.pr[0].Reset()
	g.pr[0].Add(g.projection[v][player][act], g.ar.One())

	for k := 1; k < g.numPlayers; k++ {
		q := g.porder[player][act][k]
		switch {
		case q == player2 && act2 < 0:
			g.pr[k].CopyFrom(g.pr[k-1])
		case q == player2:
			pure := trie.New(g.ar)
			pure.Add(g.projection[v][player2][act2], g.ar.One())
			g.pr[k].Multiply(g.pr[k-1], pure, arity, g.composers[v])
		default:
			g.pr[k].Multiply(g.pr[k-1], g.projectedStrat[v][q], arity, g.composers[v])
		}
	}
}

// GetPurePayoff implements Oracle. profile holds one local action
// index per player.
func (g *Game[T]) GetPurePayoff(player int, profile []int) (T, error) {
	var zero T
	if err := g.checkPlayer(player); err != nil {
		return zero, err
	}
	if len(profile) != g.numPlayers {
		return zero, errors.Errorf("pure profile has length %d, want %d", len(profile), g.numPlayers)
	}
	for p, a := range profile {
		if a < 0 || a >= g.actions[p] {
			return zero, errors.Errorf("action %d of player %d outside [0, %d)", a, p, g.actions[p])
		}
	}

	v := g.actionSets[player][profile[player]]
	arity := len(g.neighbors[v])
	cfg := g.keyPool.alloc(arity)
	defer g.keyPool.free(cfg)

	copy(cfg, g.projection[v][0][profile[0]])
	for p := 1; p < g.numPlayers; p++ {
		proj := g.projection[v][p][profile[p]]
		for i := 0; i < arity; i++ {
			cfg[i] = g.composers[v][i].Combine(cfg[i], proj[i])
		}
	}

	u, ok := g.payoffs[v].Get(cfg)
	if !ok {
		return zero, errors.Errorf("configuration %v missing from payoffs of action node %d", cfg, v)
	}
	return u, nil
}

// GetV implements Oracle: the expected payoff to player of playing
// pure action act against the mixture s.
func (g *Game[T]) GetV(player, act int, s []T) (T, error) {
	var zero T
	if err := g.checkPlayer(player); err != nil {
		return zero, err
	}
	if act < 0 || act >= g.actions[player] {
		return zero, errors.Errorf("action %d of player %d outside [0, %d)", act, player, g.actions[player])
	}
	if err := g.checkProfile(s); err != nil {
		return zero, err
	}
	return g.getV(player, act, s), nil
}

func (g *Game[T]) getV(player, act int, s []T) T {
	v := g.actionSets[player][act]
	g.doProjectionAll(v, s)
	g.computeP(player, act, -1, -1)
	return g.pr[g.numPlayers-1].InnerProd(g.payoffs[v])
}

// GetMixedPayoff implements Oracle.
func (g *Game[T]) GetMixedPayoff(player int, s []T) (T, error) {
	var zero T
	if err := g.checkPlayer(player); err != nil {
		return zero, err
	}
	if err := g.checkProfile(s); err != nil {
		return zero, err
	}

	result := g.ar.Zero()
	off := g.FirstAction(player)
	for act := 0; act < g.actions[player]; act++ {
		if g.ar.Sign(s[off+act]) > 0 {
			result = g.ar.Add(result, g.ar.Mul(s[off+act], g.getV(player, act, s)))
		}
	}
	return result, nil
}

// GetPayoffVector implements Oracle: dest[a] = GetV(player, a, s).
func (g *Game[T]) GetPayoffVector(dest []T, player int, s []T) error {
	if err := g.checkPlayer(player); err != nil {
		return err
	}
	if len(dest) != g.actions[player] {
		return errors.Errorf("payoff vector has length %d, want %d", len(dest), g.actions[player])
	}
	if err := g.checkProfile(s); err != nil {
		return err
	}
	for act := 0; act < g.actions[player]; act++ {
		dest[act] = g.getV(player, act, s)
	}
	return nil
}

// GetJ implements Oracle: GetV for (player1, act1) with player2 held
// to the pure action act2.
func (g *Game[T]) GetJ(player1, act1, player2, act2 int, s []T) (T, error) {
	var zero T
	if err := g.checkPlayer(player1); err != nil {
		return zero, err
	}
	if err := g.checkPlayer(player2); err != nil {
		return zero, err
	}
	if act1 < 0 || act1 >= g.actions[player1] {
		return zero, errors.Errorf("action %d of player %d outside [0, %d)", act1, player1, g.actions[player1])
	}
	if act2 < 0 || act2 >= g.actions[player2] {
		return zero, errors.Errorf("action %d of player %d outside [0, %d)", act2, player2, g.actions[player2])
	}
	if err := g.checkProfile(s); err != nil {
		return zero, err
	}

	v := g.actionSets[player1][act1]
	g.doProjectionAll(v, s)
	g.computeP(player1, act1, player2, act2)
	return g.pr[g.numPlayers-1].InnerProd(g.payoffs[v]), nil
}

// MaxPayoff implements Oracle.
func (g *Game[T]) MaxPayoff() T {
	result := g.ar.Zero()
	found := false
	for _, pay := range g.payoffs {
		pay.Visit(func(cfg []int, u T) {
			if !found || g.ar.Cmp(u, result) > 0 {
				result = u
				found = true
			}
		})
	}
	return result
}

// MinPayoff implements Oracle.
func (g *Game[T]) MinPayoff() T {
	result := g.ar.Zero()
	found := false
	for _, pay := range g.payoffs {
		pay.Visit(func(cfg []int, u T) {
			if !found || g.ar.Cmp(u, result) < 0 {
				result = u
				found = true
			}
		})
	}
	return result
}
