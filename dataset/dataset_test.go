package dataset

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/dkhr/goseq/encoders"
)

func TestColumnAndEncode(t *testing.T) {
	d := New([]Row{
		{"text": "a b", "label": "2"},
		{"text": "c", "label": "1"},
	})

	col, err := d.Column("text")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, col, test.ShouldResemble, []string{"a b", "c"})

	_, err = d.Column("missing")
	test.That(t, err, test.ShouldNotBeNil)

	enc, err := encoders.NewWordEncoder(col)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.EncodeColumn("text", enc), test.ShouldBeNil)

	seq, err := d.Row(0).Seq("text")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, seq, test.ShouldHaveLength, 2)

	// Encoding twice fails: the column no longer holds strings.
	err = d.EncodeColumn("text", enc)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestZeroToZero(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.TrainRows, opts.DevRows, opts.TestRows = 8, 4, 2
	splits := ZeroToZero(opts)

	test.That(t, splits.Train.Len(), test.ShouldEqual, 8)
	test.That(t, splits.Dev.Len(), test.ShouldEqual, 4)
	test.That(t, splits.Test.Len(), test.ShouldEqual, 2)

	src, err := splits.Train.Row(0).String("source")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src, test.ShouldEqual, "0")
}

func TestCountLabelsMatchLength(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.TrainRows = 32
	splits := Count(opts)

	for _, row := range splits.Train.Rows {
		text, err := row.String("text")
		test.That(t, err, test.ShouldBeNil)
		label, err := row.String("label")
		test.That(t, err, test.ShouldBeNil)

		n := len(strings.Fields(text))
		test.That(t, label, test.ShouldEqual, strconv.Itoa(n))
	}
}

func TestReverseTargets(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.TrainRows = 16
	splits := Reverse(opts)

	for _, row := range splits.Train.Rows {
		src, err := row.String("source")
		test.That(t, err, test.ShouldBeNil)
		tgt, err := row.String("target")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, reverseTokens(tgt), test.ShouldEqual, src)
	}
}

func reverseTokens(s string) string {
	tokens := strings.Fields(s)
	for l, r := 0, len(tokens)-1; l < r; l, r = l+1, r-1 {
		tokens[l], tokens[r] = tokens[r], tokens[l]
	}
	return strings.Join(tokens, " ")
}

func TestResplitDeterministic(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.TrainRows, opts.DevRows = 20, 10
	splits := Count(opts)

	a1, b1 := Resplit(splits.Train, splits.Dev, 7, -1)
	a2, b2 := Resplit(splits.Train, splits.Dev, 7, -1)

	test.That(t, a1.Len(), test.ShouldEqual, 20)
	test.That(t, b1.Len(), test.ShouldEqual, 10)
	test.That(t, a1.Rows, test.ShouldResemble, a2.Rows)
	test.That(t, b1.Rows, test.ShouldResemble, b2.Rows)
}

func TestResplitCut(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.TrainRows, opts.DevRows = 20, 10
	splits := Count(opts)

	a, b := Resplit(splits.Train, splits.Dev, 7, 0.9)
	test.That(t, a.Len(), test.ShouldEqual, 27)
	test.That(t, b.Len(), test.ShouldEqual, 3)
}

func TestLoadTSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.tsv")
	content := "text\tlabel\nhello world\tgreeting\nbye\tfarewell\n"
	test.That(t, os.WriteFile(path, []byte(content), 0o644), test.ShouldBeNil)

	d, err := LoadTSV(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Len(), test.ShouldEqual, 2)

	label, err := d.Row(1).String("label")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, label, test.ShouldEqual, "farewell")

	_, err = LoadTSV(filepath.Join(dir, "missing.tsv"))
	test.That(t, err, test.ShouldNotBeNil)
}
