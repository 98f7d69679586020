package dataset

import (
	"math/rand"
	"strconv"
	"strings"
)

// Splits holds the three conventional dataset splits.
type Splits struct {
	Train *Dataset
	Dev   *Dataset
	Test  *Dataset
}

// GenerateOptions control the toy data generators.
type GenerateOptions struct {
	TrainRows    int
	DevRows      int
	TestRows     int
	SeqMaxLength int
	Seed         int64
}

// DefaultGenerateOptions mirror the defaults the toy datasets ship with.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		TrainRows:    256,
		DevRows:      64,
		TestRows:     64,
		SeqMaxLength: 10,
		Seed:         123,
	}
}

// ZeroToZero generates the degenerate sanity-check dataset: every row maps
// source "0" to target "0". A model that cannot fit this is broken.
func ZeroToZero(opts GenerateOptions) Splits {
	gen := func(n int) *Dataset {
		rows := make([]Row, n)
		for i := range rows {
			rows[i] = Row{"source": "0", "target": "0"}
		}
		return New(rows)
	}
	return Splits{Train: gen(opts.TrainRows), Dev: gen(opts.DevRows), Test: gen(opts.TestRows)}
}

// Count generates sequence-to-label rows: the source is a random-length
// space-joined digit sequence and the label is its token count.
func Count(opts GenerateOptions) Splits {
	rng := rand.New(rand.NewSource(opts.Seed))
	gen := func(n int) *Dataset {
		rows := make([]Row, n)
		for i := range rows {
			length := rng.Intn(opts.SeqMaxLength) + 1
			tokens := make([]string, length)
			for j := range tokens {
				tokens[j] = strconv.Itoa(rng.Intn(10))
			}
			rows[i] = Row{
				"text":  strings.Join(tokens, " "),
				"label": strconv.Itoa(length),
			}
		}
		return New(rows)
	}
	return Splits{Train: gen(opts.TrainRows), Dev: gen(opts.DevRows), Test: gen(opts.TestRows)}
}

// Reverse generates sequence-to-sequence rows: the target is the source
// token sequence reversed.
func Reverse(opts GenerateOptions) Splits {
	rng := rand.New(rand.NewSource(opts.Seed))
	gen := func(n int) *Dataset {
		rows := make([]Row, n)
		for i := range rows {
			length := rng.Intn(opts.SeqMaxLength) + 1
			tokens := make([]string, length)
			for j := range tokens {
				tokens[j] = strconv.Itoa(rng.Intn(10))
			}
			source := strings.Join(tokens, " ")
			for l, r := 0, len(tokens)-1; l < r; l, r = l+1, r-1 {
				tokens[l], tokens[r] = tokens[r], tokens[l]
			}
			rows[i] = Row{
				"source": source,
				"target": strings.Join(tokens, " "),
			}
		}
		return New(rows)
	}
	return Splits{Train: gen(opts.TrainRows), Dev: gen(opts.DevRows), Test: gen(opts.TestRows)}
}
