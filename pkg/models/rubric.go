package models

// RubricMatrix holds the scores extracted from one analysis. Rows are evaluation
// instances, columns are rubric criteria. A missing cell is NaN.
type RubricMatrix struct {
	FileName string
	Columns  []string
	Rows     [][]float64
}

// NumCols returns the width of the score rows.
func (m RubricMatrix) NumCols() int {
	if len(m.Rows) == 0 {
		return 0
	}
	return len(m.Rows[0])
}

// ScoreTable is the combination of every usable RubricMatrix.
type ScoreTable struct {
	Columns   []string    `json:"columns"`
	RowLabels []string    `json:"row_labels"`
	Scores    [][]float64 `json:"scores"`
	Overall   []float64   `json:"overall"`
}

// OverallColumn is the label of the per-row mean column.
const OverallColumn = "Overall Score"
