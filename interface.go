package agg

// Oracle is the payoff query surface consumed by equilibrium solvers.
// A *Game[T] implements it. Mixed strategy profiles are probability
// vectors of length TotalActions, segmented by player; symmetric and
// k-symmetric variants take per-class probability vectors instead.
//
// Oracle calls are not safe for concurrent use on the same underlying
// game: they share per-instance scratch distributions. Callers that
// need parallelism construct one game instance per goroutine.
type Oracle[T any] interface {
	// NumPlayers returns the number of players n.
	NumPlayers() int
	// NumActions returns the size of the given player's action set.
	NumActions(player int) int
	// TotalActions returns the summed size of all action sets.
	TotalActions() int
	// NumActionNodes returns the number of action nodes S.
	NumActionNodes() int
	// NumFunctionNodes returns the number of function nodes F.
	NumFunctionNodes() int

	// IsSymmetric reports whether all players share one action set.
	IsSymmetric() bool
	// NumPlayerClasses returns the number of equivalence classes of
	// players under identical sorted action sets.
	NumPlayerClasses() int
	// PlayerClass returns the class index of the given player.
	PlayerClass(player int) int
	// ClassActionSet returns the sorted action set shared by a class.
	ClassActionSet(class int) []int

	// GetPurePayoff returns the payoff to player under the pure
	// profile (one local action index per player).
	GetPurePayoff(player int, profile []int) (T, error)
	// GetV returns the expected payoff to player from playing the
	// pure action against the mixture s.
	GetV(player, action int, s []T) (T, error)
	// GetMixedPayoff returns the expected payoff to player under s.
	GetMixedPayoff(player int, s []T) (T, error)
	// GetPayoffVector fills dest with GetV for every action of player.
	GetPayoffVector(dest []T, player int, s []T) error
	// GetJ is GetV with player2 forced to the pure action2; it is the
	// building block for Jacobian entries in homotopy solvers.
	GetJ(player1, action1, player2, action2 int, s []T) (T, error)

	// GetSymMixedPayoff returns the expected payoff to any one player
	// of a symmetric game when all players play the node-indexed
	// mixture s.
	GetSymMixedPayoff(s []T) (T, error)
	// GetSymPayoffVector fills dest with the symmetric expected
	// payoff of each action node.
	GetSymPayoffVector(dest []T, s []T) error
	// GetKSymMixedPayoff returns the expected payoff to a player of
	// the given class when every class c plays the mixture s[c].
	GetKSymMixedPayoff(class int, s [][]T) (T, error)
	// GetKSymPayoffVector fills dest with the per-action expected
	// payoffs for the given class.
	GetKSymPayoffVector(dest []T, class int, s [][]T) error
	// GetKSymJ is the k-symmetric Jacobian entry: the expected payoff
	// to class1 playing act1 with one player of class2 forced to act2.
	GetKSymJ(class1, act1, class2, act2 int, s [][]T) (T, error)

	// MaxPayoff and MinPayoff return the extreme values over all
	// payoff tables.
	MaxPayoff() T
	MinPayoff() T
}
