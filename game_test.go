package agg

import (
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/timpalpant/go-agg/num"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// coordDef is a 2-player, 2-action coordination game: both players
// earn 2 when they land on the same node, 0 otherwise.
func coordDef() GameDef[float64] {
	return GameDef[float64]{
		NumPlayers:     2,
		NumActionNodes: 2,
		ActionSets:     [][]int{{0, 1}, {0, 1}},
		Neighbors:      [][]int{{0, 1}, {0, 1}},
		Payoffs: []PayoffDef[float64]{
			{Kind: PayoffMapping, Entries: []PayoffEntry[float64]{
				{Config: []int{2, 0}, Value: 2},
				{Config: []int{1, 1}, Value: 0},
				{Config: []int{0, 2}, Value: 0},
			}},
			{Kind: PayoffMapping, Entries: []PayoffEntry[float64]{
				{Config: []int{2, 0}, Value: 0},
				{Config: []int{1, 1}, Value: 0},
				{Config: []int{0, 2}, Value: 2},
			}},
		},
	}
}

// aggregatorDef is a 3-player game where both action nodes see only a
// function node that aggregates over all actions.
func aggregatorDef(kind FuncKind, u0, u1 float64, cfg int) GameDef[float64] {
	return GameDef[float64]{
		NumPlayers:     3,
		NumActionNodes: 2,
		NumFuncNodes:   1,
		ActionSets:     [][]int{{0, 1}, {0, 1}, {0, 1}},
		Neighbors:      [][]int{{2}, {2}, {0, 1}},
		Funcs:          []ProjFunc{{Kind: kind}},
		Payoffs: []PayoffDef[float64]{
			{Kind: PayoffMapping, Entries: []PayoffEntry[float64]{{Config: []int{cfg}, Value: u0}}},
			{Kind: PayoffMapping, Entries: []PayoffEntry[float64]{{Config: []int{cfg}, Value: u1}}},
		},
	}
}

func mustGame(t *testing.T, def GameDef[float64]) *Game[float64] {
	t.Helper()
	g, err := NewGame(num.Float64{}, def)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCoordinationPure(t *testing.T) {
	g := mustGame(t, coordDef())

	if !g.IsSymmetric() {
		t.Error("coordination game should be symmetric")
	}
	if g.NumPlayers() != 2 || g.NumActions(0) != 2 || g.TotalActions() != 4 {
		t.Errorf("wrong counts: n=%d actions=%d total=%d", g.NumPlayers(), g.NumActions(0), g.TotalActions())
	}

	cases := []struct {
		profile []int
		player  int
		want    float64
	}{
		{[]int{0, 0}, 0, 2},
		{[]int{0, 0}, 1, 2},
		{[]int{1, 1}, 0, 2},
		{[]int{0, 1}, 0, 0},
		{[]int{1, 0}, 1, 0},
	}
	for _, tc := range cases {
		got, err := g.GetPurePayoff(tc.player, tc.profile)
		if err != nil {
			t.Fatalf("GetPurePayoff(%d, %v): %v", tc.player, tc.profile, err)
		}
		if !approxEqual(got, tc.want) {
			t.Errorf("GetPurePayoff(%d, %v) = %v, want %v", tc.player, tc.profile, got, tc.want)
		}
	}
}

func TestCoordinationGetV(t *testing.T) {
	g := mustGame(t, coordDef())

	pure := []float64{1, 0, 1, 0}
	if v, err := g.GetV(0, 0, pure); err != nil || !approxEqual(v, 2) {
		t.Errorf("GetV(0,0) = %v, %v; want 2", v, err)
	}
	if v, err := g.GetV(0, 1, pure); err != nil || !approxEqual(v, 0) {
		t.Errorf("GetV(0,1) = %v, %v; want 0", v, err)
	}

	uniform := []float64{0.5, 0.5, 0.5, 0.5}
	// Against a uniform opponent either action coordinates half the
	// time, for an expected 1.
	if v, err := g.GetV(0, 0, uniform); err != nil || !approxEqual(v, 1) {
		t.Errorf("GetV(0,0) = %v, %v; want 1", v, err)
	}
	if v, err := g.GetMixedPayoff(0, uniform); err != nil || !approxEqual(v, 1) {
		t.Errorf("GetMixedPayoff = %v, %v; want 1", v, err)
	}
}

func TestMixedIsWeightedSumOfV(t *testing.T) {
	g := mustGame(t, coordDef())
	s := []float64{0.3, 0.7, 0.9, 0.1}

	for player := 0; player < 2; player++ {
		want := 0.0
		off := g.FirstAction(player)
		for a := 0; a < g.NumActions(player); a++ {
			v, err := g.GetV(player, a, s)
			if err != nil {
				t.Fatal(err)
			}
			want += s[off+a] * v
		}
		got, err := g.GetMixedPayoff(player, s)
		if err != nil {
			t.Fatal(err)
		}
		if !approxEqual(got, want) {
			t.Errorf("player %d: GetMixedPayoff = %v, sum of GetV = %v", player, got, want)
		}
	}
}

func TestMixedMatchesPureOnIndicator(t *testing.T) {
	g := mustGame(t, coordDef())
	for a0 := 0; a0 < 2; a0++ {
		for a1 := 0; a1 < 2; a1++ {
			profile := []int{a0, a1}
			s := make([]float64, 4)
			s[a0] = 1
			s[2+a1] = 1
			for player := 0; player < 2; player++ {
				pure, err := g.GetPurePayoff(player, profile)
				if err != nil {
					t.Fatal(err)
				}
				mixed, err := g.GetMixedPayoff(player, s)
				if err != nil {
					t.Fatal(err)
				}
				if !approxEqual(pure, mixed) {
					t.Errorf("profile %v player %d: pure %v != mixed %v", profile, player, pure, mixed)
				}
			}
		}
	}
}

func TestProjectionPreservesMass(t *testing.T) {
	g := mustGame(t, coordDef())
	s := []float64{0.25, 0.75, 0.6, 0.4}
	if _, err := g.GetV(0, 0, s); err != nil {
		t.Fatal(err)
	}

	// After marginalization, each projected strategy carries the
	// player's full probability mass.
	for p := 0; p < 2; p++ {
		total := 0.0
		g.projectedStrat[0][p].Visit(func(cfg []int, w float64) {
			total += w
		})
		if !approxEqual(total, 1) {
			t.Errorf("player %d projected mass = %v, want 1", p, total)
		}
	}
}

func TestSumAggregator(t *testing.T) {
	// Every player contributes 1 to the SUM node regardless of
	// action, so node 0 always sees the configuration [3].
	g := mustGame(t, aggregatorDef(FuncSum, 7, 11, 3))

	for _, profile := range [][]int{{0, 0, 0}, {0, 1, 1}, {0, 1, 0}} {
		got, err := g.GetPurePayoff(0, profile)
		if err != nil {
			t.Fatalf("GetPurePayoff(%v): %v", profile, err)
		}
		if !approxEqual(got, 7) {
			t.Errorf("GetPurePayoff(0, %v) = %v, want 7", profile, got)
		}
	}

	s := []float64{0.2, 0.8, 0.5, 0.5, 1, 0}
	if v, err := g.GetV(1, 0, s); err != nil || !approxEqual(v, 7) {
		t.Errorf("GetV(1,0) = %v, %v; want 7", v, err)
	}
	if v, err := g.GetV(1, 1, s); err != nil || !approxEqual(v, 11) {
		t.Errorf("GetV(1,1) = %v, %v; want 11", v, err)
	}
	if v, err := g.GetMixedPayoff(0, s); err != nil || !approxEqual(v, 0.2*7+0.8*11) {
		t.Errorf("GetMixedPayoff = %v, %v", v, err)
	}
}

func TestExistAggregator(t *testing.T) {
	// With EXIST the aggregate is 1 whenever anyone plays anything,
	// i.e. always: both nodes pay their single configuration.
	g := mustGame(t, aggregatorDef(FuncExist, 5, 5, 1))

	for _, profile := range [][]int{{0, 0, 0}, {1, 1, 1}, {0, 1, 0}} {
		for player := 0; player < 3; player++ {
			got, err := g.GetPurePayoff(player, profile)
			if err != nil {
				t.Fatal(err)
			}
			if !approxEqual(got, 5) {
				t.Errorf("GetPurePayoff(%d, %v) = %v, want 5", player, profile, got)
			}
		}
	}
}

func TestCycleRejected(t *testing.T) {
	def := GameDef[float64]{
		NumPlayers:     1,
		NumActionNodes: 2,
		NumFuncNodes:   2,
		ActionSets:     [][]int{{0, 1}},
		Neighbors:      [][]int{{}, {}, {3}, {2}},
		Funcs:          []ProjFunc{{Kind: FuncSum}, {Kind: FuncSum}},
		Payoffs:        make([]PayoffDef[float64], 2),
	}
	_, err := NewGame(num.Float64{}, def)
	if err == nil {
		t.Fatal("cyclic function nodes should be rejected")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error %q does not mention the cycle", err)
	}
}

func TestSignatureMismatchRejected(t *testing.T) {
	def := GameDef[float64]{
		NumPlayers:     1,
		NumActionNodes: 2,
		NumFuncNodes:   2,
		ActionSets:     [][]int{{0, 1}},
		Neighbors:      [][]int{{}, {}, {3}, {0}},
		Funcs:          []ProjFunc{{Kind: FuncSum}, {Kind: FuncExist}},
		Payoffs:        make([]PayoffDef[float64], 2),
	}
	_, err := NewGame(num.Float64{}, def)
	if err == nil {
		t.Fatal("mismatched projection signatures should be rejected")
	}
	if !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("error %q does not mention the mismatch", err)
	}
}

func TestAscendingActionSetsEnforced(t *testing.T) {
	def := coordDef()
	def.ActionSets[0] = []int{1, 0}
	if _, err := NewGame(num.Float64{}, def); err == nil {
		t.Fatal("descending action set should be rejected")
	}
}

func TestOnePlayerSingleAction(t *testing.T) {
	def := GameDef[float64]{
		NumPlayers:     1,
		NumActionNodes: 1,
		ActionSets:     [][]int{{0}},
		Neighbors:      [][]int{{}},
		Payoffs: []PayoffDef[float64]{
			{Kind: PayoffComplete, Values: []float64{42}},
		},
	}
	g := mustGame(t, def)

	if v, err := g.GetPurePayoff(0, []int{0}); err != nil || !approxEqual(v, 42) {
		t.Errorf("GetPurePayoff = %v, %v", v, err)
	}
	if v, err := g.GetV(0, 0, []float64{1}); err != nil || !approxEqual(v, 42) {
		t.Errorf("GetV = %v, %v", v, err)
	}
	if v, err := g.GetMixedPayoff(0, []float64{1}); err != nil || !approxEqual(v, 42) {
		t.Errorf("GetMixedPayoff = %v, %v", v, err)
	}
	if v, err := g.GetSymMixedPayoff([]float64{1}); err != nil || !approxEqual(v, 42) {
		t.Errorf("GetSymMixedPayoff = %v, %v", v, err)
	}
}

func TestEmptyNeighborhoods(t *testing.T) {
	def := GameDef[float64]{
		NumPlayers:     3,
		NumActionNodes: 2,
		ActionSets:     [][]int{{0, 1}, {0, 1}, {0, 1}},
		Neighbors:      [][]int{{}, {}},
		Payoffs: []PayoffDef[float64]{
			{Kind: PayoffComplete, Values: []float64{4}},
			{Kind: PayoffComplete, Values: []float64{9}},
		},
	}
	g := mustGame(t, def)

	for _, s := range [][]float64{
		{1, 0, 1, 0, 1, 0},
		{0.5, 0.5, 0.1, 0.9, 0.7, 0.3},
	} {
		if v, err := g.GetV(0, 0, s); err != nil || !approxEqual(v, 4) {
			t.Errorf("GetV(0,0,%v) = %v, %v; want 4", s, v, err)
		}
		if v, err := g.GetV(2, 1, s); err != nil || !approxEqual(v, 9) {
			t.Errorf("GetV(2,1,%v) = %v, %v; want 9", s, v, err)
		}
	}
}

func TestMappingDuplicateRejected(t *testing.T) {
	def := coordDef()
	def.Payoffs[0].Entries = append(def.Payoffs[0].Entries,
		PayoffEntry[float64]{Config: []int{2, 0}, Value: 2})
	_, err := NewGame(num.Float64{}, def)
	if err == nil || !strings.Contains(err.Error(), "overwriting") {
		t.Errorf("duplicate configuration should be rejected, got %v", err)
	}
}

func TestMappingMissingRejected(t *testing.T) {
	def := coordDef()
	def.Payoffs[0].Entries = def.Payoffs[0].Entries[:2]
	_, err := NewGame(num.Float64{}, def)
	if err == nil || !strings.Contains(err.Error(), "not specified") {
		t.Errorf("missing configuration should be rejected, got %v", err)
	}
}

func TestMappingUnreachableRejected(t *testing.T) {
	def := coordDef()
	def.Payoffs[0].Entries = append(def.Payoffs[0].Entries,
		PayoffEntry[float64]{Config: []int{3, 0}, Value: 1})
	_, err := NewGame(num.Float64{}, def)
	if err == nil || !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("unreachable configuration should be rejected, got %v", err)
	}
}

func TestCompleteWrongLengthRejected(t *testing.T) {
	def := coordDef()
	def.Payoffs[0] = PayoffDef[float64]{Kind: PayoffComplete, Values: []float64{1, 2}}
	if _, err := NewGame(num.Float64{}, def); err == nil {
		t.Error("COMPLETE payoff with wrong length should be rejected")
	}
}

func TestGetJ(t *testing.T) {
	g := mustGame(t, coordDef())
	uniform := []float64{0.5, 0.5, 0.5, 0.5}

	// With player 1 held to a node, player 0 coordinates exactly when
	// playing that same node.
	if v, err := g.GetJ(0, 0, 1, 0, uniform); err != nil || !approxEqual(v, 2) {
		t.Errorf("GetJ(0,0,1,0) = %v, %v; want 2", v, err)
	}
	if v, err := g.GetJ(0, 0, 1, 1, uniform); err != nil || !approxEqual(v, 0) {
		t.Errorf("GetJ(0,0,1,1) = %v, %v; want 0", v, err)
	}
	if v, err := g.GetJ(0, 1, 1, 1, uniform); err != nil || !approxEqual(v, 2) {
		t.Errorf("GetJ(0,1,1,1) = %v, %v; want 2", v, err)
	}
}

func TestMinMaxPayoff(t *testing.T) {
	g := mustGame(t, coordDef())
	if got := g.MaxPayoff(); !approxEqual(got, 2) {
		t.Errorf("MaxPayoff = %v, want 2", got)
	}
	if got := g.MinPayoff(); !approxEqual(got, 0) {
		t.Errorf("MinPayoff = %v, want 0", got)
	}
}

func TestInvalidProfiles(t *testing.T) {
	g := mustGame(t, coordDef())

	if _, err := g.GetMixedPayoff(0, []float64{1, 0}); err == nil {
		t.Error("short profile should be rejected")
	}
	if _, err := g.GetMixedPayoff(0, []float64{1.5, -0.5, 1, 0}); err == nil {
		t.Error("negative probability should be rejected")
	}
	if _, err := g.GetMixedPayoff(5, []float64{1, 0, 1, 0}); err == nil {
		t.Error("out-of-range player should be rejected")
	}
	if _, err := g.GetV(0, 7, []float64{1, 0, 1, 0}); err == nil {
		t.Error("out-of-range action should be rejected")
	}
}

func TestRationalArithmeticExact(t *testing.T) {
	def := GameDef[*big.Rat]{
		NumPlayers:     2,
		NumActionNodes: 2,
		ActionSets:     [][]int{{0, 1}, {0, 1}},
		Neighbors:      [][]int{{0, 1}, {0, 1}},
		Payoffs: []PayoffDef[*big.Rat]{
			{Kind: PayoffMapping, Entries: []PayoffEntry[*big.Rat]{
				{Config: []int{2, 0}, Value: big.NewRat(2, 1)},
				{Config: []int{1, 1}, Value: big.NewRat(0, 1)},
				{Config: []int{0, 2}, Value: big.NewRat(0, 1)},
			}},
			{Kind: PayoffMapping, Entries: []PayoffEntry[*big.Rat]{
				{Config: []int{2, 0}, Value: big.NewRat(0, 1)},
				{Config: []int{1, 1}, Value: big.NewRat(0, 1)},
				{Config: []int{0, 2}, Value: big.NewRat(2, 1)},
			}},
		},
	}
	g, err := NewGame(num.Rat{}, def)
	if err != nil {
		t.Fatal(err)
	}

	half := big.NewRat(1, 2)
	s := []*big.Rat{half, half, half, half}
	got, err := g.GetMixedPayoff(0, s)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(big.NewRat(1, 1)) != 0 {
		t.Errorf("GetMixedPayoff = %v, want exactly 1", got)
	}
}

// BenchmarkGetV-8   	  200000	      8000 ns/op
func BenchmarkGetV(b *testing.B) {
	g, err := NewGame(num.Float64{}, aggregatorDef(FuncSum, 7, 11, 3))
	if err != nil {
		b.Fatal(err)
	}
	s := []float64{0.2, 0.8, 0.5, 0.5, 0.4, 0.6}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := g.GetV(0, 0, s); err != nil {
			b.Fatal(err)
		}
	}
}
