package probability

// Table is the persistence form of a Distribution: the exact dense masses and
// the outcome of the first slot. It carries yaml and json tags so storage
// adapters can encode it directly.
type Table struct {
	Offset     int       `yaml:"offset" json:"offset"`
	Masses     []float64 `yaml:"masses" json:"masses"`
	Incomplete bool      `yaml:"incomplete,omitempty" json:"incomplete,omitempty"`
}

// Table exports d.
//
// Postcondition: FromTable(d.Table()) is point-wise equal to d.
func (d *Distribution) Table() Table {
	masses, offset := d.Masses()
	return Table{Offset: offset, Masses: masses, Incomplete: d.incomplete}
}

// FromTable rebuilds a Distribution from its persistence form, validating it
// the same way New (or NewIncomplete for incomplete tables) does.
func FromTable(t Table, opts ...Option) (*Distribution, error) {
	if t.Incomplete {
		return NewIncomplete(t.Masses, t.Offset, opts...)
	}
	return New(t.Masses, t.Offset, opts...)
}
