package orchestrator

import (
	"fmt"
	"sort"

	"fedlearn/internal/pipeline"
	"fedlearn/internal/table"
)

// labels holds the usable rows of a table and their encoded targets.
type labels struct {
	rows    []int
	y       []float64
	classes []string
}

// buildLabels drops rows with a missing (or, for regression, non-numeric)
// target. Classification classes are sorted, numerically when every class
// parses as a number, and y holds class indices.
func buildLabels(spec pipeline.Spec, t *table.Table) (labels, error) {
	col, ok := t.Index(spec.Target)
	if !ok {
		return labels{}, fmt.Errorf("%w: target %q not in table", pipeline.ErrInvalidTask, spec.Target)
	}

	var l labels
	if spec.Task == pipeline.TaskRegression {
		for r := 0; r < t.Len(); r++ {
			if v, ok := t.Float(r, col); ok {
				l.rows = append(l.rows, r)
				l.y = append(l.y, v)
			}
		}
		return l, nil
	}

	seen := make(map[string]bool)
	for r := 0; r < t.Len(); r++ {
		v := t.Value(r, col)
		if table.IsMissing(v) {
			continue
		}
		l.rows = append(l.rows, r)
		if !seen[v] {
			seen[v] = true
			l.classes = append(l.classes, v)
		}
	}
	sortClasses(l.classes)
	index := make(map[string]int, len(l.classes))
	for i, c := range l.classes {
		index[c] = i
	}
	l.y = make([]float64, len(l.rows))
	for i, r := range l.rows {
		l.y[i] = float64(index[t.Value(r, col)])
	}
	if len(l.classes) < 2 {
		return labels{}, fmt.Errorf("%w: classification needs at least 2 classes, found %d", pipeline.ErrInvalidTask, len(l.classes))
	}
	return l, nil
}

func sortClasses(classes []string) {
	numeric := true
	for _, c := range classes {
		if _, ok := table.ParseFloat(c); !ok {
			numeric = false
			break
		}
	}
	sort.SliceStable(classes, func(i, j int) bool {
		if numeric {
			a, _ := table.ParseFloat(classes[i])
			b, _ := table.ParseFloat(classes[j])
			return a < b
		}
		return classes[i] < classes[j]
	})
}

// subset returns the labels at positions idx.
func (l labels) subset(idx []int) (rows []int, y []float64) {
	rows = make([]int, len(idx))
	y = make([]float64, len(idx))
	for i, p := range idx {
		rows[i] = l.rows[p]
		y[i] = l.y[p]
	}
	return rows, y
}
