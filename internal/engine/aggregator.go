package engine

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"dashboard/internal/models"

	"github.com/apache/arrow/go/v18/arrow/array"
)

const (
	topPublishers = 15
	topDevelopers = 10
	donutHole     = 0.3
)

// chartBuilder computes one slot of the bundle from the store.
type chartBuilder func(cs *ColumnStore) (models.ChartSpec, error)

// builders is the bundle layout; index i fills display slot i.
var builders = [models.BundleSize]chartBuilder{
	func(cs *ColumnStore) (models.ChartSpec, error) {
		return topCountChart(cs, models.SlotTopPublishers, ColPublisher, topPublishers,
			"Top 15 Publishers de VideoJuegos", "#3cb371")
	},
	developerTreemap,
	func(cs *ColumnStore) (models.ChartSpec, error) {
		return topCountChart(cs, models.SlotTopDevelopers, ColDeveloper, topDevelopers,
			"Top 10 Developers de VideoJuegos", "#ff6347")
	},
	func(cs *ColumnStore) (models.ChartSpec, error) {
		return breakdownChart(cs, models.SlotRatingBreakdown, ColRating, "Clasificación por Edad")
	},
	func(cs *ColumnStore) (models.ChartSpec, error) {
		return breakdownChart(cs, models.SlotGenreBreakdown, ColGenre, "Géneros de Videojuegos")
	},
	platformSalesPie,
	func(cs *ColumnStore) (models.ChartSpec, error) {
		return perRowChart(cs, models.SlotSalesByPublisher, ColPublisher, ColGlobalSales, "Ventas Globales por Publishers")
	},
	func(cs *ColumnStore) (models.ChartSpec, error) {
		return perRowChart(cs, models.SlotSalesByDeveloper, ColDeveloper, ColGlobalSales, "Ventas Globales por Developers")
	},
	func(cs *ColumnStore) (models.ChartSpec, error) {
		return perRowChart(cs, models.SlotUserScores, ColName, ColUserScore, "Puntuaciones de Usuarios")
	},
	func(cs *ColumnStore) (models.ChartSpec, error) {
		return perRowChart(cs, models.SlotCriticScores, ColName, ColCriticScore, "Puntuaciones de la Crítica")
	},
}

// Aggregate derives the ten chart specs of the dashboard. It is pure: the
// store is only read, and the same store always yields the same bundle.
//
// Rows lacking a field are left out of the charts that use that field and
// nowhere else.
func (cs *ColumnStore) Aggregate() (bundle models.FigureBundle, err error) {
	slot := -1
	defer func() {
		if r := recover(); r != nil {
			chart := ""
			if slot >= 0 {
				chart = models.SlotIDs[slot]
			}
			err = &models.AggregationError{Chart: chart, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	for i, build := range builders {
		slot = i
		spec, err := build(cs)
		if err != nil {
			return models.FigureBundle{}, &models.AggregationError{Chart: models.SlotIDs[i], Err: err}
		}
		bundle[i] = spec
	}
	return bundle, nil
}

// --- counting helpers ---

// countBy counts non-null values of col in first-appearance order.
func countBy(col *array.String) []models.Point {
	pos := make(map[string]int)
	points := make([]models.Point, 0)
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			continue
		}
		k := col.Value(i)
		p, ok := pos[k]
		if !ok {
			p = len(points)
			pos[k] = p
			points = append(points, models.Point{Label: k, Index: -1})
		}
		points[p].Value++
	}
	return points
}

// sumBy sums vals per non-null key in first-appearance order. Rows with a
// null key or value are skipped.
func sumBy(keys *array.String, vals *array.Float64) []models.Point {
	pos := make(map[string]int)
	points := make([]models.Point, 0)
	for i := 0; i < keys.Len(); i++ {
		if keys.IsNull(i) || vals.IsNull(i) {
			continue
		}
		k := keys.Value(i)
		p, ok := pos[k]
		if !ok {
			p = len(points)
			pos[k] = p
			points = append(points, models.Point{Label: k, Index: -1})
		}
		points[p].Value += vals.Value(i)
	}
	return points
}

// byValueDesc orders points by descending value; ties keep their order.
func byValueDesc(points []models.Point) {
	slices.SortStableFunc(points, func(a, b models.Point) int {
		return cmp.Compare(b.Value, a.Value)
	})
}

// topN returns the n most frequent points, ties by first appearance.
func topN(points []models.Point, n int) []models.Point {
	byValueDesc(points)
	if len(points) > n {
		points = points[:n]
	}
	return points
}

// --- chart builders ---

func topCountChart(cs *ColumnStore, id, field string, n int, title, color string) (models.ChartSpec, error) {
	col, err := cs.Strings(field)
	if err != nil {
		return models.ChartSpec{}, err
	}
	return models.ChartSpec{
		ID:      id,
		Kind:    models.KindBar,
		Title:   title,
		GroupBy: field,
		Value:   "count",
		Color:   color,
		Points:  topN(countBy(col), n),
	}, nil
}

func developerTreemap(cs *ColumnStore) (models.ChartSpec, error) {
	col, err := cs.Strings(ColDeveloper)
	if err != nil {
		return models.ChartSpec{}, err
	}
	points := countBy(col)
	slices.SortStableFunc(points, func(a, b models.Point) int {
		return strings.Compare(a.Label, b.Label)
	})
	return models.ChartSpec{
		ID:      models.SlotDeveloperDistribution,
		Kind:    models.KindTreemap,
		Title:   "Distribución de Desarrolladores/Developers",
		GroupBy: ColDeveloper,
		Value:   "count",
		Points:  points,
	}, nil
}

func breakdownChart(cs *ColumnStore, id, field, title string) (models.ChartSpec, error) {
	col, err := cs.Strings(field)
	if err != nil {
		return models.ChartSpec{}, err
	}
	return models.ChartSpec{
		ID:      id,
		Kind:    models.KindBar,
		Title:   title,
		GroupBy: field,
		Value:   "count",
		Points:  countBy(col),
	}, nil
}

func platformSalesPie(cs *ColumnStore) (models.ChartSpec, error) {
	keys, err := cs.Strings(ColPlatform)
	if err != nil {
		return models.ChartSpec{}, err
	}
	vals, err := cs.Floats(ColGlobalSales)
	if err != nil {
		return models.ChartSpec{}, err
	}
	points := sumBy(keys, vals)
	byValueDesc(points)
	return models.ChartSpec{
		ID:      models.SlotPlatformSales,
		Kind:    models.KindPie,
		Title:   "Ventas de las Plataformas",
		GroupBy: ColPlatform,
		Value:   ColGlobalSales,
		Hole:    donutHole,
		Points:  points,
	}, nil
}

// perRowChart plots one bar per row carrying both fields, labelled by group.
func perRowChart(cs *ColumnStore, id, group, value, title string) (models.ChartSpec, error) {
	keys, err := cs.Strings(group)
	if err != nil {
		return models.ChartSpec{}, err
	}
	vals, err := cs.Floats(value)
	if err != nil {
		return models.ChartSpec{}, err
	}
	points := make([]models.Point, 0, keys.Len())
	for i := 0; i < keys.Len(); i++ {
		if keys.IsNull(i) || vals.IsNull(i) {
			continue
		}
		points = append(points, models.Point{Label: keys.Value(i), Value: vals.Value(i), Index: i})
	}
	return models.ChartSpec{
		ID:      id,
		Kind:    models.KindBar,
		Title:   title,
		GroupBy: group,
		Value:   value,
		Points:  points,
	}, nil
}
