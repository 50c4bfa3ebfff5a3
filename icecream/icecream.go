// Package icecream generates the ice-cream-vendor location game, the
// canonical example of an action graph game: vendors pick a spot
// along a boardwalk and split the demand within reach with every
// competitor standing within reach. The payoff of a spot
// depends only on the vendor counts at nearby spots, so the action
// graph has one node per location with edges between locations within
// reach.
package icecream

import (
	"github.com/pkg/errors"

	agg "github.com/timpalpant/go-agg"
	"github.com/timpalpant/go-agg/num"
)

// Def builds the game definition for numVendors vendors on a line of
// numLocations spots, where a vendor at v competes with vendors
// within width spots of v. demand[u] is the demand at spot u; every
// vendor at v earns the demand of its catchment divided by the number
// of vendors competing there.
func Def(numVendors, numLocations, width int, demand []float64) (agg.GameDef[float64], error) {
	var def agg.GameDef[float64]
	if numVendors < 1 || numLocations < 1 || width < 0 {
		return def, errors.Errorf("invalid game shape: %d vendors, %d locations, width %d",
			numVendors, numLocations, width)
	}
	if len(demand) != numLocations {
		return def, errors.Errorf("got %d demand values for %d locations", len(demand), numLocations)
	}

	def.NumPlayers = numVendors
	def.NumActionNodes = numLocations

	all := make([]int, numLocations)
	for v := range all {
		all[v] = v
	}
	def.ActionSets = make([][]int, numVendors)
	for p := range def.ActionSets {
		def.ActionSets[p] = all
	}

	def.Neighbors = make([][]int, numLocations)
	for v := range def.Neighbors {
		lo, hi := v-width, v+width
		if lo < 0 {
			lo = 0
		}
		if hi > numLocations-1 {
			hi = numLocations - 1
		}
		for u := lo; u <= hi; u++ {
			def.Neighbors[v] = append(def.Neighbors[v], u)
		}
	}

	def.Payoffs = make([]agg.PayoffDef[float64], numLocations)
	for v := range def.Payoffs {
		nb := def.Neighbors[v]
		self := -1
		catchment := 0.0
		for i, u := range nb {
			if u == v {
				self = i
			}
			catchment += demand[u]
		}

		// The reachable configurations at v: the vendor itself plus
		// any split of the others between this catchment and
		// elsewhere. When the catchment covers the whole line there
		// is no elsewhere.
		pay := agg.PayoffDef[float64]{Kind: agg.PayoffMapping}
		lowOthers := 0
		if len(nb) == numLocations {
			lowOthers = numVendors - 1
		}
		for m := lowOthers; m <= numVendors-1; m++ {
			forEachComposition(m, len(nb), func(c []int) {
				cfg := append([]int(nil), c...)
				cfg[self]++
				total := 0
				for _, x := range cfg {
					total += x
				}
				pay.Entries = append(pay.Entries, agg.PayoffEntry[float64]{
					Config: cfg,
					Value:  catchment / float64(total),
				})
			})
		}
		def.Payoffs[v] = pay
	}
	return def, nil
}

// NewGame constructs the vendor game directly.
func NewGame(numVendors, numLocations, width int, demand []float64) (*agg.Game[float64], error) {
	def, err := Def(numVendors, numLocations, width, demand)
	if err != nil {
		return nil, err
	}
	return agg.NewGame(num.Float64{}, def)
}

// UniformDemand returns a demand vector of ones.
func UniformDemand(numLocations int) []float64 {
	d := make([]float64, numLocations)
	for i := range d {
		d[i] = 1
	}
	return d
}

// forEachComposition calls f with every weak composition of m into k
// parts. The slice passed to f is reused between calls.
func forEachComposition(m, k int, f func(c []int)) {
	c := make([]int, k)
	var rec func(pos, left int)
	rec = func(pos, left int) {
		if pos == k-1 {
			c[pos] = left
			f(c)
			return
		}
		for x := 0; x <= left; x++ {
			c[pos] = x
			rec(pos+1, left-x)
		}
	}
	rec(0, m)
}
