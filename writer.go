package agg

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// WriteTo serializes the game in the textual AGG format. Payoff
// tables are written in MAPPING form with configurations in ascending
// order, so re-parsing the output yields an equivalent game.
func (g *Game[T]) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# Action Graph Game")
	fmt.Fprintln(bw, g.numPlayers)
	fmt.Fprintln(bw, g.numActionNodes)
	fmt.Fprintln(bw, g.numFuncNodes)

	for i, n := range g.actions {
		if i > 0 {
			bw.WriteByte(' ')
		}
		bw.WriteString(strconv.Itoa(n))
	}
	bw.WriteByte('\n')

	for _, as := range g.actionSets {
		writeInts(bw, as)
	}

	for _, nb := range g.neighbors {
		bw.WriteString(strconv.Itoa(len(nb)))
		for _, v := range nb {
			bw.WriteByte(' ')
			bw.WriteString(strconv.Itoa(v))
		}
		bw.WriteByte('\n')
	}

	for _, f := range g.funcs {
		bw.WriteString(f.String())
		bw.WriteByte('\n')
	}

	for v, pay := range g.payoffs {
		fmt.Fprintf(bw, "# payoffs of action node %d\n", v)
		fmt.Fprintf(bw, "%d %d\n", int(PayoffMapping), pay.Size())
		pay.Visit(func(cfg []int, u T) {
			bw.WriteByte('[')
			for i, c := range cfg {
				if i > 0 {
					bw.WriteByte(' ')
				}
				bw.WriteString(strconv.Itoa(c))
			}
			bw.WriteString("] ")
			bw.WriteString(g.ar.String(u))
			bw.WriteByte('\n')
		})
	}

	return bw.Flush()
}

func writeInts(w *bufio.Writer, xs []int) {
	for i, x := range xs {
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteString(strconv.Itoa(x))
	}
	w.WriteByte('\n')
}
