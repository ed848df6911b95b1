// Command efinfo prints Elias–Fano geometry for a universe and element
// count, and optionally encodes a value list and walks it back.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/eliasfano"
)

// demoShapes are printed when no flags are given.
var demoShapes = [][2]uint64{
	{2, 1},
	{100, 20},
	{0, 2},
	{291080, 12738992},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "efinfo: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("efinfo", flag.ContinueOnError)
	fs.SetOutput(w)
	universe := fs.Uint64("universe", 0, "largest value the sequence may hold")
	count := fs.Uint64("count", 0, "number of elements")
	valuesFlag := fs.String("values", "", "comma-separated non-decreasing values to encode (sets -count, and -universe if unset)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *valuesFlag != "" {
		values, err := parseValues(*valuesFlag)
		if err != nil {
			return err
		}
		u := *universe
		if u == 0 {
			u = values[len(values)-1]
		}
		return walk(w, u, values)
	}
	if *count == 0 {
		for i, shape := range demoShapes {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := describe(w, shape[0], shape[1]); err != nil {
				return err
			}
		}
		return nil
	}
	return describe(w, *universe, *count)
}

func describe(w io.Writer, universe, count uint64) error {
	geo, err := eliasfano.NewGeometry(universe, count)
	if err != nil {
		return fmt.Errorf("universe %d, count %d: %w", universe, count, err)
	}
	fmt.Fprint(w, geo.String())
	return nil
}

func walk(w io.Writer, universe uint64, values []uint64) error {
	if err := eliasfano.Validate(universe, values); err != nil {
		return err
	}
	seq, err := eliasfano.New(universe, uint64(len(values)))
	if err != nil {
		return err
	}
	seq.Build(values)
	fmt.Fprint(w, seq.String())
	fmt.Fprintf(w, "Bits per element: %.2f\n", float64(seq.BitSize())/float64(seq.Size()))
	fmt.Fprintf(w, "High bits set: %d\n", seq.HighBitsSet())
	for {
		fmt.Fprintf(w, "[%d] %d\n", seq.Position(), seq.Value())
		if _, err := seq.Next(); err != nil {
			break
		}
	}
	return nil
}

func parseValues(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	values := make([]uint64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return values, nil
}
