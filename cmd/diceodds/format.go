package main

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/diceodds/internal/dice"
	"github.com/cory-johannsen/diceodds/internal/dice/probability"
	"github.com/cory-johannsen/diceodds/internal/odds"
)

// Output formats accepted by -format.
const (
	formatText = "text"
	formatYAML = "yaml"
)

// barWidth is the number of cells drawn for the most likely outcome.
const barWidth = 40

type oddsDocument struct {
	Notation  string            `yaml:"notation"`
	Cached    bool              `yaml:"cached"`
	Min       int               `yaml:"min"`
	Max       int               `yaml:"max"`
	Expected  float64           `yaml:"expected"`
	Variance  float64           `yaml:"variance"`
	TotalMass float64           `yaml:"total_mass"`
	Table     probability.Table `yaml:"table"`
}

type rollDocument struct {
	ID          string `yaml:"id"`
	Notation    string `yaml:"notation"`
	Total       int    `yaml:"total"`
	Explanation string `yaml:"explanation"`
}

func validFormat(f string) bool {
	return f == formatText || f == formatYAML
}

// writeOdds renders report to w.
//
// Precondition: format is formatText or formatYAML.
func writeOdds(w io.Writer, format string, report odds.Report) error {
	d := report.Distribution
	if format == formatYAML {
		return encodeYAML(w, oddsDocument{
			Notation:  report.Notation,
			Cached:    report.Cached,
			Min:       d.Min(),
			Max:       d.Max(),
			Expected:  d.Expected(),
			Variance:  d.Variance(),
			TotalMass: d.TotalMass(),
			Table:     d.Table(),
		})
	}

	fmt.Fprintf(w, "%s  mean %.4f  variance %.4f\n", report.Notation, d.Expected(), d.Variance())
	if d.Incomplete() {
		fmt.Fprintf(w, "  incomplete: %.6g of the mass is represented\n", d.TotalMass())
	}
	peak := 0.0
	for _, v := range d.Outcomes() {
		peak = max(peak, d.PEq(v))
	}
	for _, v := range d.Outcomes() {
		p := d.PEq(v)
		if p == 0 {
			continue
		}
		cells := 0
		if peak > 0 {
			cells = int(p / peak * barWidth)
		}
		fmt.Fprintf(w, "%6d %8.4f%% %s\n", v, p*100, strings.Repeat("#", cells))
	}
	return nil
}

// writeRoll renders one roll to w.
//
// Precondition: format is formatText or formatYAML.
func writeRoll(w io.Writer, format string, r dice.RollResult) error {
	if format == formatYAML {
		return encodeYAML(w, []rollDocument{{
			ID:          r.ID.String(),
			Notation:    r.Notation,
			Total:       r.Total,
			Explanation: r.Explanation,
		}})
	}
	_, err := fmt.Fprintln(w, r.String())
	return err
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}
