package rubric

import (
	"fmt"
	"math"

	"github.com/kiranshivaraju/medalyze/pkg/models"
)

// Table stacks rubric matrices vertically. The first accepted matrix fixes the
// criteria; later matrices must have the same width. Zero value is ready to use.
type Table struct {
	columns []string
	width   int
	labels  []string
	rows    [][]float64
}

// Add appends m's rows labelled "<file> (Eval i)". A matrix with no rows or a
// different width is rejected with ErrShape and leaves the table unchanged.
func (t *Table) Add(m models.RubricMatrix) error {
	if len(m.Rows) == 0 || m.NumCols() == 0 {
		return fmt.Errorf("%w: no scores", ErrShape)
	}
	for i, row := range m.Rows {
		if len(row) != m.NumCols() {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i+1, len(row), m.NumCols())
		}
	}
	if t.width == 0 {
		t.width = m.NumCols()
		t.columns = m.Columns
	} else if m.NumCols() != t.width {
		return fmt.Errorf("%w: %d criteria, want %d", ErrShape, m.NumCols(), t.width)
	}

	for i, row := range m.Rows {
		t.labels = append(t.labels, fmt.Sprintf("%s (Eval %d)", m.FileName, i+1))
		t.rows = append(t.rows, row)
	}
	return nil
}

// Len returns the number of stacked rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// ScoreTable returns the combined table with the per-row Overall Score.
// The second return is false when nothing was added.
func (t *Table) ScoreTable() (models.ScoreTable, bool) {
	if len(t.rows) == 0 {
		return models.ScoreTable{}, false
	}

	cols := t.columns
	if len(cols) != t.width {
		cols = CriterionLabels(t.width)
	}

	overall := make([]float64, len(t.rows))
	for i, row := range t.rows {
		overall[i] = RowMean(row)
	}

	return models.ScoreTable{
		Columns:   append([]string(nil), cols...),
		RowLabels: append([]string(nil), t.labels...),
		Scores:    t.rows,
		Overall:   overall,
	}, true
}

// RowMean averages the cells of row. A missing (NaN) cell makes the whole
// mean NaN, as does an empty row.
func RowMean(row []float64) float64 {
	if len(row) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range row {
		sum += v
	}
	return sum / float64(len(row))
}
