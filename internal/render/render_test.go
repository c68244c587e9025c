package render

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"dashboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodable(t *testing.T, f models.Figure) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(f.PNG))
	require.NoError(t, err, f.ID)
	assert.Positive(t, img.Bounds().Dx())
}

func TestRenderKinds(t *testing.T) {
	r := New(nil)
	specs := []models.ChartSpec{
		{ID: "bar", Kind: models.KindBar, Title: "Top", Value: "count", Color: "#3cb371", Points: []models.Point{
			{Label: "Nintendo", Value: 2, Index: -1}, {Label: "Sega", Value: 1, Index: -1},
		}},
		{ID: "rows", Kind: models.KindBar, Title: "Rows", Value: "Global_Sales", Points: []models.Point{
			{Label: "Nintendo", Value: 11.9, Index: 0}, {Label: "Sega", Value: 0.3, Index: 1}, {Label: "Nintendo", Value: 1.1, Index: 2},
		}},
		{ID: "pie", Kind: models.KindPie, Title: "Pie", Hole: 0.3, Points: []models.Point{
			{Label: "N64", Value: 13, Index: -1}, {Label: "SAT", Value: 0.3, Index: -1},
		}},
		{ID: "tree", Kind: models.KindTreemap, Title: "Tree", Points: []models.Point{
			{Label: "Capcom", Value: 1, Index: -1}, {Label: "Nintendo EAD", Value: 4, Index: -1}, {Label: "Retro", Value: 2, Index: -1},
		}},
		{ID: "zero", Kind: models.KindBar, Title: "Zero", Points: []models.Point{{Label: "x", Value: 0, Index: -1}}},
	}
	for _, s := range specs {
		f, err := r.Render(s)
		require.NoError(t, err, s.ID)
		assert.Equal(t, s.ID, f.ID)
		assert.Equal(t, s.Title, f.Title)
		decodable(t, f)
	}
}

func TestRenderEmptySpecsDrawPlaceholder(t *testing.T) {
	r := New(nil)
	for _, kind := range []models.ChartKind{models.KindBar, models.KindPie, models.KindTreemap} {
		f, err := r.Render(models.ChartSpec{ID: string(kind), Kind: kind, Title: "Vacío", Points: []models.Point{}})
		require.NoError(t, err)
		decodable(t, f)
	}

	f, err := r.Render(models.ChartSpec{ID: "pie", Kind: models.KindPie, Title: "Zero", Points: []models.Point{{Label: "a", Value: 0}}})
	require.NoError(t, err)
	decodable(t, f)
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := New(nil).Render(models.ChartSpec{ID: "odd", Kind: "radar", Points: []models.Point{{Label: "a", Value: 1}}})
	require.Error(t, err)
	assert.Equal(t, models.KindRender, models.Kind(err))
}

func TestRenderBundleKeepsSlotOrder(t *testing.T) {
	var bundle models.FigureBundle
	for i, id := range models.SlotIDs {
		bundle[i] = models.ChartSpec{ID: id, Kind: models.KindBar, Title: id, Points: []models.Point{{Label: id, Value: float64(i + 1), Index: -1}}}
	}
	figs, err := New(nil).RenderBundle(context.Background(), bundle)
	require.NoError(t, err)
	require.Len(t, figs, models.BundleSize)
	for i, f := range figs {
		assert.Equal(t, models.SlotIDs[i], f.ID)
		assert.NotEmpty(t, f.PNG)
	}
}

func TestRenderBundleAllOrNothing(t *testing.T) {
	var bundle models.FigureBundle
	for i, id := range models.SlotIDs {
		bundle[i] = models.ChartSpec{ID: id, Kind: models.KindBar, Title: id, Points: []models.Point{}}
	}
	bundle[7].Kind = "radar"
	bundle[7].Points = []models.Point{{Label: "x", Value: 1}}

	figs, err := New(nil).RenderBundle(context.Background(), bundle)
	require.Error(t, err)
	assert.Nil(t, figs)

	var re *models.RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, models.SlotSalesByDeveloper, re.Chart)
}

func TestPartitionCoversArea(t *testing.T) {
	points := []models.Point{{Label: "a", Value: 1}, {Label: "b", Value: 2}, {Label: "c", Value: 3}, {Label: "d", Value: 2}}
	var cells []cell
	partition(points, 0, 0, 800, 400, &cells)
	require.Len(t, cells, len(points))

	area := 0
	for _, c := range cells {
		assert.LessOrEqual(t, c.left, c.right)
		assert.LessOrEqual(t, c.top, c.bottom)
		area += (c.right - c.left) * (c.bottom - c.top)
	}
	assert.Equal(t, 800*400, area)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "Nintendo", clip("Nintendo", 20))
	assert.Equal(t, "Nint…", clip("Nintendo", 5))
}
