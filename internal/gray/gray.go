// Package gray enumerates the weak compositions of N into K parts in
// a Gray-code order: consecutive compositions differ by moving one
// unit from a single part to another. The decremented and incremented
// positions are exposed after each step so that a caller integrating
// multinomial probabilities can update the running coefficient in
// O(1) instead of recomputing it.
package gray

// Composition is the enumerator state. The first composition is
// [N, 0, ..., 0]. After each Incr, D is the position that lost a unit
// and I the position that gained one; they are -1 before the first
// Incr.
type Composition struct {
	D, I int

	n, k    int
	current []int
	// pivots is a stack of distinct positions. pivots[t] is the part
	// currently being drained at recursion depth t; the remaining mass
	// below depth t always sits on the last pivot.
	pivots []int
	done   bool
}

// New returns an enumerator over the compositions of n into k parts.
// k must be positive and n non-negative.
func New(n, k int) *Composition {
	if k < 1 || n < 0 {
		panic("gray: need k >= 1 and n >= 0")
	}
	c := &Composition{
		D:       -1,
		I:       -1,
		n:       n,
		k:       k,
		current: make([]int, k),
		pivots:  make([]int, 1, k),
	}
	c.current[0] = n
	return c
}

// Get returns the current composition. The slice is owned by the
// enumerator and changes on Incr.
func (c *Composition) Get() []int { return c.current }

// EOF reports whether the enumeration is exhausted. It becomes true
// on the Incr following the last composition.
func (c *Composition) EOF() bool { return c.done }

// Incr advances to the next composition, or sets EOF after the last
// one. C(n+k-1, k-1) compositions are produced in total.
func (c *Composition) Incr() {
	if c.done {
		return
	}
	m := len(c.pivots) - 1

	// The next move happens at the deepest part that can still be
	// drained: the bottom pivot if its frame has room to move, else
	// the deepest pivot above it holding a nonzero count. Pivots
	// passed over with a zero count have finished their block.
	t := -1
	if c.k-m >= 2 && c.current[c.pivots[m]] > 0 {
		t = m
	} else {
		for j := m - 1; j >= 0; j-- {
			if c.current[c.pivots[j]] > 0 {
				t = j
				break
			}
		}
	}
	if t < 0 {
		c.done = true
		return
	}

	p := c.pivots[t]
	c.current[p]--
	c.D = p

	// The freed unit joins the mass already accumulated below (the
	// bottom pivot), or starts a fresh block on the lowest unused
	// position.
	dst := -1
	if t < m && c.current[c.pivots[m]] > 0 {
		dst = c.pivots[m]
	} else {
		dst = c.lowestUnused(t)
	}
	c.current[dst]++
	c.I = dst
	c.pivots = append(c.pivots[:t+1], dst)
}

func (c *Composition) lowestUnused(t int) int {
	for pos := 0; pos < c.k; pos++ {
		used := false
		for _, p := range c.pivots[:t+1] {
			if p == pos {
				used = true
				break
			}
		}
		if !used {
			return pos
		}
	}
	panic("gray: no unused position")
}
