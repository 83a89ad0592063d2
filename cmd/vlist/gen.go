package main

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/vlist/internal/config"
)

// ErrInvalidCount is returned for a negative --count.
var ErrInvalidCount = errors.New("count must not be negative")

var genWords = []string{
	"amber", "basalt", "cedar", "delta", "ember", "fjord", "garnet", "harbor",
	"indigo", "juniper", "kestrel", "lagoon", "meadow", "nebula", "onyx", "prairie",
}

// GenOptions describes a synthetic dataset.
type GenOptions struct {
	Count      int
	ArrayPath  string
	Categories int
	Seed       uint64
}

func newGenCmd() *cobra.Command {
	var (
		opts GenOptions
		out  string
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a synthetic JSON dataset for the viewer",
		Example: `  vlist gen --count 1000000 --out items.json
  vlist view --source items.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := generate(opts)
			if err != nil {
				return err
			}
			if err := atomic.WriteFile(out, bytes.NewReader(doc)); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", opts.Count, out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 10000, "Number of records")
	cmd.Flags().StringVarP(&out, "out", "o", "items.json", "Output file")
	cmd.Flags().StringVar(&opts.ArrayPath, "array-path", config.Default().Source.ArrayPath,
		"Path of the record array in the document; empty writes a top-level array")
	cmd.Flags().IntVar(&opts.Categories, "categories", 5, "Number of distinct category ids")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "Random seed")
	return cmd
}

// generate builds the dataset document. Records are rendered one at a time
// and joined, so the cost stays linear in the record count.
func generate(opts GenOptions) ([]byte, error) {
	if opts.Count < 0 {
		return nil, ErrInvalidCount
	}
	categories := max(opts.Categories, 1)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var items bytes.Buffer
	items.WriteByte('[')
	for i := range opts.Count {
		rec, err := genRecord(i, rng, categories)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if i > 0 {
			items.WriteByte(',')
		}
		items.Write(rec)
	}
	items.WriteByte(']')

	if opts.ArrayPath == "" {
		return items.Bytes(), nil
	}
	return sjson.SetRawBytes([]byte(`{}`), opts.ArrayPath, items.Bytes())
}

func genRecord(i int, rng *rand.Rand, categories int) ([]byte, error) {
	text := fmt.Sprintf("%s %s #%d",
		genWords[rng.IntN(len(genWords))], genWords[rng.IntN(len(genWords))], i)

	rec := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			rec, err = sjson.SetBytes(rec, path, value)
		}
	}
	set("id", i)
	set("text", text)
	set("category", fmt.Sprintf("c%d", rng.IntN(categories)))
	set("score", rng.IntN(1000))
	set("active", rng.IntN(2) == 1)
	return rec, err
}
