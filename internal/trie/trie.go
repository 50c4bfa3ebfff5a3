// Package trie implements a weighted map keyed by fixed-length
// vectors of non-negative integers (neighborhood configurations).
// It is the distribution type used for projected mixed strategies and
// for payoff tables: keys are configurations, weights are
// probabilities or utilities.
//
// The layout is a radix trie with one node per key digit and
// slice-indexed children, so that multiplication of two distributions
// reduces to a pairwise walk over their entries.
package trie

import (
	"github.com/timpalpant/go-agg/num"
)

// Composer combines the contribution values of two configurations at
// one key position when distributions are multiplied.
type Composer interface {
	Combine(a, b int) int
}

type node[T any] struct {
	children []*node[T]
	weight   T
	leaf     bool
}

// Map is a weighted configuration trie. All keys inserted into one
// Map must have the same length (the arity of the owning node's
// neighbor list). The zero-length key is valid: the root doubles as
// its leaf.
type Map[T any] struct {
	ar   num.Arith[T]
	root node[T]
	size int
}

// New returns an empty Map using the given scalar arithmetic.
func New[T any](ar num.Arith[T]) *Map[T] {
	return &Map[T]{ar: ar}
}

// Size returns the number of distinct keys.
func (m *Map[T]) Size() int { return m.size }

// Reset removes all entries.
func (m *Map[T]) Reset() {
	m.root = node[T]{}
	m.size = 0
}

// Add accumulates weight w at the given key, inserting it if absent.
func (m *Map[T]) Add(key []int, w T) {
	n := &m.root
	for _, d := range key {
		if d >= len(n.children) {
			children := make([]*node[T], d+1)
			copy(children, n.children)
			n.children = children
		}
		if n.children[d] == nil {
			n.children[d] = &node[T]{}
		}
		n = n.children[d]
	}
	if n.leaf {
		n.weight = m.ar.Add(n.weight, w)
	} else {
		n.leaf = true
		n.weight = w
		m.size++
	}
}

// Get returns the weight at key, if present.
func (m *Map[T]) Get(key []int) (T, bool) {
	n := &m.root
	for _, d := range key {
		if d < 0 || d >= len(n.children) || n.children[d] == nil {
			var zero T
			return zero, false
		}
		n = n.children[d]
	}
	if !n.leaf {
		var zero T
		return zero, false
	}
	return n.weight, true
}

// Visit calls f for every (key, weight) entry in ascending key order.
// The key slice is reused between calls; f must copy it to retain it.
func (m *Map[T]) Visit(f func(key []int, w T)) {
	var key []int
	m.visit(&m.root, key, f)
}

func (m *Map[T]) visit(n *node[T], key []int, f func(key []int, w T)) {
	if n.leaf {
		f(key, n.weight)
	}
	for d, c := range n.children {
		if c != nil {
			m.visit(c, append(key, d), f)
		}
	}
}

// AddScaled adds s times every entry of other into m.
func (m *Map[T]) AddScaled(other *Map[T], s T) {
	other.Visit(func(key []int, w T) {
		m.Add(key, m.ar.Mul(s, w))
	})
}

// CopyFrom replaces the contents of m with those of other.
func (m *Map[T]) CopyFrom(other *Map[T]) {
	m.Reset()
	other.Visit(func(key []int, w T) {
		m.Add(key, w)
	})
}

// Multiply sets m to the product of a and b: for every pair of
// entries, the composed key has comp[i].Combine(ka[i], kb[i]) at each
// position, and the weights multiply. m must be distinct from a and b.
func (m *Map[T]) Multiply(a, b *Map[T], arity int, comp []Composer) {
	m.Reset()
	key := make([]int, arity)
	a.Visit(func(ka []int, wa T) {
		b.Visit(func(kb []int, wb T) {
			for i := 0; i < arity; i++ {
				key[i] = comp[i].Combine(ka[i], kb[i])
			}
			m.Add(key, m.ar.Mul(wa, wb))
		})
	})
}

// MultiplyBy multiplies m by other in place.
func (m *Map[T]) MultiplyBy(other *Map[T], arity int, comp []Composer) {
	type entry struct {
		key []int
		w   T
	}
	entries := make([]entry, 0, m.size)
	m.Visit(func(key []int, w T) {
		entries = append(entries, entry{append([]int(nil), key...), w})
	})
	m.Reset()
	key := make([]int, arity)
	for _, e := range entries {
		other.Visit(func(kb []int, wb T) {
			for i := 0; i < arity; i++ {
				key[i] = comp[i].Combine(e.key[i], kb[i])
			}
			m.Add(key, m.ar.Mul(e.w, wb))
		})
	}
}

// Power sets dest to the k-fold multiplicative convolution of m with
// itself, by repeated squaring. scratch is clobbered. dest and
// scratch must be distinct from each other and from m. k must be >= 1.
func (m *Map[T]) Power(k int, dest, scratch *Map[T], arity int, comp []Composer) {
	dest.CopyFrom(m)
	if k <= 1 {
		return
	}
	msb := 0
	for 1<<(msb+1) <= k {
		msb++
	}
	cur, other := dest, scratch
	for b := msb - 1; b >= 0; b-- {
		other.Multiply(cur, cur, arity, comp)
		cur, other = other, cur
		if k&(1<<b) != 0 {
			other.Multiply(cur, m, arity, comp)
			cur, other = other, cur
		}
	}
	if cur != dest {
		dest.CopyFrom(cur)
	}
}

// InnerProd returns the sum over all entries of m of weight times the
// payoff stored at the same key. Keys absent from payoff contribute
// zero.
func (m *Map[T]) InnerProd(payoff *Map[T]) T {
	sum := m.ar.Zero()
	m.Visit(func(key []int, w T) {
		if u, ok := payoff.Get(key); ok {
			sum = m.ar.Add(sum, m.ar.Mul(w, u))
		}
	})
	return sum
}

// InnerProdKernel is InnerProd with a final composition step fused in:
// each key of m is first combined position-wise with kernel before the
// payoff lookup. It is used to apply the querying player's own action
// on top of an opponent-configuration distribution.
func (m *Map[T]) InnerProdKernel(kernel []int, arity int, comp []Composer, payoff *Map[T]) T {
	sum := m.ar.Zero()
	key := make([]int, arity)
	m.Visit(func(k []int, w T) {
		for i := 0; i < arity; i++ {
			key[i] = comp[i].Combine(k[i], kernel[i])
		}
		if u, ok := payoff.Get(key); ok {
			sum = m.ar.Add(sum, m.ar.Mul(w, u))
		}
	})
	return sum
}
