// Package rubric turns recovered analysis documents into score matrices and
// stacks them into one table.
package rubric

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/medalyze/pkg/lenientjson"
	"github.com/kiranshivaraju/medalyze/pkg/models"
	"github.com/tidwall/gjson"
)

// EvaluationsField is the document member holding the per-evaluation scores.
const EvaluationsField = "evaluations_0"

// ErrShape is returned when evaluations cannot be used as a two-dimensional
// numeric matrix. The file is skipped, never merged.
var ErrShape = errors.New("evaluations are not a usable matrix")

// Extract builds the RubricMatrix for one file.
//
// A list of objects yields one column per distinct key, in first-seen order;
// a key absent from a row is NaN. A list of equally long arrays yields
// "Criterion N" columns. Numbers and numeric strings are accepted, null is NaN.
func Extract(doc *lenientjson.Document, fileName string) (models.RubricMatrix, error) {
	evals := doc.Member(EvaluationsField)
	if !evals.IsArray() {
		return models.RubricMatrix{}, fmt.Errorf("%w: %s missing or not a list", ErrShape, EvaluationsField)
	}
	items := evals.Array()
	if len(items) == 0 {
		return models.RubricMatrix{}, fmt.Errorf("%w: %s is empty", ErrShape, EvaluationsField)
	}

	var (
		cols []string
		rows [][]float64
		err  error
	)
	switch {
	case items[0].IsObject():
		cols, rows, err = fromRecords(items)
	case items[0].IsArray():
		cols, rows, err = fromArrays(items)
	default:
		err = fmt.Errorf("%w: evaluations are not two-dimensional", ErrShape)
	}
	if err != nil {
		return models.RubricMatrix{}, err
	}
	if len(cols) == 0 {
		return models.RubricMatrix{}, fmt.Errorf("%w: evaluations have no criteria", ErrShape)
	}

	return models.RubricMatrix{FileName: fileName, Columns: cols, Rows: rows}, nil
}

func fromRecords(items []gjson.Result) ([]string, [][]float64, error) {
	var cols []string
	index := make(map[string]int)
	records := make([]map[string]gjson.Result, 0, len(items))

	for i, item := range items {
		if !item.IsObject() {
			return nil, nil, fmt.Errorf("%w: evaluation %d is not an object", ErrShape, i+1)
		}
		rec := make(map[string]gjson.Result)
		item.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			if _, seen := index[key]; !seen {
				index[key] = len(cols)
				cols = append(cols, key)
			}
			rec[key] = v
			return true
		})
		records = append(records, rec)
	}

	rows := make([][]float64, 0, len(records))
	for i, rec := range records {
		row := make([]float64, len(cols))
		for j, col := range cols {
			v, ok := rec[col]
			if !ok {
				row[j] = math.NaN()
				continue
			}
			f, err := cellValue(v)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: evaluation %d, %q: %v", ErrShape, i+1, col, err)
			}
			row[j] = f
		}
		rows = append(rows, row)
	}
	return cols, rows, nil
}

func fromArrays(items []gjson.Result) ([]string, [][]float64, error) {
	width := len(items[0].Array())
	rows := make([][]float64, 0, len(items))

	for i, item := range items {
		if !item.IsArray() {
			return nil, nil, fmt.Errorf("%w: evaluation %d is not a list", ErrShape, i+1)
		}
		cells := item.Array()
		if len(cells) != width {
			return nil, nil, fmt.Errorf("%w: evaluation %d has %d values, want %d", ErrShape, i+1, len(cells), width)
		}
		row := make([]float64, width)
		for j, c := range cells {
			f, err := cellValue(c)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: evaluation %d, column %d: %v", ErrShape, i+1, j+1, err)
			}
			row[j] = f
		}
		rows = append(rows, row)
	}
	return CriterionLabels(width), rows, nil
}

func cellValue(v gjson.Result) (float64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.Null:
		return math.NaN(), nil
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", v.Str)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("non-numeric value %s", v.Raw)
	}
}

// CriterionLabels returns "Criterion 1" .. "Criterion n".
func CriterionLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("Criterion %d", i+1)
	}
	return labels
}
