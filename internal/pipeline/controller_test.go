package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dashboard/internal/engine"
	"dashboard/internal/models"
	"dashboard/internal/render"

	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves canned rows per console family, or a fixed error.
type fakeSource struct {
	mem   *memory.CheckedAllocator
	rows  map[models.ConsoleFamily][]models.Row
	err   error
	panic bool
	calls int
	mu    sync.Mutex
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		mem:  memory.NewCheckedAllocator(memory.NewGoAllocator()),
		rows: make(map[models.ConsoleFamily][]models.Row),
	}
}

func (f *fakeSource) Fetch(_ context.Context, sel models.Selection) (*engine.ColumnStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panic {
		panic("source exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return engine.NewColumnStore(f.mem, f.rows[sel.ConsoleFamily]), nil
}

// stubRenderer tags each figure with its slot ID instead of drawing it.
type stubRenderer struct {
	err error
}

func (s stubRenderer) RenderBundle(_ context.Context, bundle models.FigureBundle) ([]models.Figure, error) {
	if s.err != nil {
		return nil, s.err
	}
	figs := make([]models.Figure, 0, len(bundle))
	for _, spec := range bundle {
		figs = append(figs, models.Figure{ID: spec.ID, Title: spec.Title, PNG: []byte(spec.ID)})
	}
	return figs, nil
}

func game(name, publisher string) models.Row {
	return models.Row{
		Name:        models.Str(name),
		Platform:    models.Str("N64"),
		Genre:       models.Str("Platform"),
		Publisher:   models.Str(publisher),
		Developer:   models.Str(publisher + " Dev"),
		Rating:      models.Str("E"),
		CriticScore: models.Num(80),
		UserScore:   models.Num(8),
		GlobalSales: models.Num(1.5),
	}
}

func startedController(t *testing.T, src *fakeSource, r Renderer) *Controller {
	t.Helper()
	sel, res := Initialize(context.Background(), src, r)
	return New(src, r, sel, res, nil)
}

func assertFailedDisplay(t *testing.T, snap Snapshot) {
	t.Helper()
	assert.Equal(t, Failed, snap.State)
	assert.Equal(t, Notice, snap.Notice)
	assert.Nil(t, snap.Bundle)
	assert.Empty(t, snap.Figures)
	for i := 0; i < models.BundleSize; i++ {
		_, ok := snap.Figure(i)
		assert.False(t, ok, "slot %d", i)
	}
}

func TestInitializeUsesDefaultSelection(t *testing.T) {
	src := newFakeSource()
	src.rows[models.PlayStation] = []models.Row{game("Tearaway", "Sony")}
	c := startedController(t, src, stubRenderer{})

	snap := c.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, models.DefaultSelection(), snap.Selection)
	assert.Equal(t, "Visualización de datos para la Serie de Consolas en Playstation durante 2013.", snap.Description)
	require.Len(t, snap.Figures, models.BundleSize)
	for i := range snap.Figures {
		f, ok := snap.Figure(i)
		require.True(t, ok)
		assert.Equal(t, models.SlotIDs[i], f.ID)
	}
	assert.Equal(t, 1, src.calls)
	src.mem.AssertSize(t, 0)
}

func TestSubmitScenarioNintendo1996(t *testing.T) {
	src := newFakeSource()
	src.rows[models.Nintendo] = []models.Row{
		game("Super Mario 64", "Nintendo"),
		game("Sonic 3D Blast", "Sega"),
		game("Pilotwings 64", "Nintendo"),
	}
	c := startedController(t, src, stubRenderer{})

	snap := c.Submit(context.Background(), models.Selection{ConsoleFamily: models.Nintendo, Year: 1996})
	assert.Equal(t, Idle, snap.State)
	require.NotNil(t, snap.Bundle)
	assert.Equal(t, []models.Point{
		{Label: "Nintendo", Value: 2, Index: -1},
		{Label: "Sega", Value: 1, Index: -1},
	}, snap.Bundle[0].Points)
	assert.Equal(t, 2, snap.Runs)
	src.mem.AssertSize(t, 0)
}

func TestTransportErrorShowsNoticeEverywhere(t *testing.T) {
	src := newFakeSource()
	src.rows[models.PlayStation] = []models.Row{game("Knack", "Sony")}
	c := startedController(t, src, stubRenderer{})
	require.Equal(t, Idle, c.State())

	src.err = &models.TransportError{URL: "http://api/console_serie/nintendo/years/1996", Status: 503}
	snap := c.Submit(context.Background(), models.Selection{ConsoleFamily: models.Nintendo, Year: 1996})

	assertFailedDisplay(t, snap)
	assert.Equal(t, models.KindTransport, snap.ErrorKind)
	assert.Equal(t, "Visualización de datos para la Serie de Consolas en Nintendo durante 1996.", snap.Description)
	assert.Equal(t, Failed, c.State())
}

func TestRenderFailureNeverShowsPartialBundle(t *testing.T) {
	src := newFakeSource()
	src.rows[models.PlayStation] = []models.Row{game("Knack", "Sony")}
	src.rows[models.Sega] = []models.Row{game("Shenmue", "Sega")}

	r := &switchRenderer{}
	c := startedController(t, src, r)
	require.Len(t, c.Snapshot().Figures, models.BundleSize)

	r.err = &models.RenderError{Chart: models.SlotCriticScores, Err: errors.New("no font")}
	snap := c.Submit(context.Background(), models.Selection{ConsoleFamily: models.Sega, Year: 1994})
	assertFailedDisplay(t, snap)
	assert.Equal(t, models.KindRender, snap.ErrorKind)
	src.mem.AssertSize(t, 0)

	// The next submit starts afresh and recovers.
	r.err = nil
	snap = c.Submit(context.Background(), models.Selection{ConsoleFamily: models.Sega, Year: 1994})
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.Notice)
	assert.Equal(t, "Sega", snap.Bundle[0].Points[0].Label)
}

type switchRenderer struct {
	err error
}

func (s *switchRenderer) RenderBundle(ctx context.Context, bundle models.FigureBundle) ([]models.Figure, error) {
	return stubRenderer{err: s.err}.RenderBundle(ctx, bundle)
}

func TestFormatAndPanicFailures(t *testing.T) {
	src := newFakeSource()
	c := startedController(t, src, stubRenderer{})

	src.err = &models.FormatError{URL: "http://api", Err: errors.New("not an array")}
	snap := c.Submit(context.Background(), models.Selection{ConsoleFamily: models.Microsoft, Year: 2005})
	assertFailedDisplay(t, snap)
	assert.Equal(t, models.KindFormat, snap.ErrorKind)

	src.err = nil
	src.panic = true
	snap = c.Submit(context.Background(), models.Selection{ConsoleFamily: models.Microsoft, Year: 2005})
	assertFailedDisplay(t, snap)
	assert.Equal(t, models.KindTransport, snap.ErrorKind)
}

type panickyRenderer struct{}

func (panickyRenderer) RenderBundle(context.Context, models.FigureBundle) ([]models.Figure, error) {
	panic("renderer exploded")
}

func TestPanicKindFollowsStage(t *testing.T) {
	src := newFakeSource()
	t.Cleanup(func() { src.mem.AssertSize(t, 0) })
	sel := models.Selection{ConsoleFamily: models.Sega, Year: 1994}

	res := Execute(context.Background(), src, panickyRenderer{}, sel)
	assert.Equal(t, models.KindRender, models.Kind(res.Err))
	assert.Contains(t, res.Err.Error(), "renderer exploded")

	src.panic = true
	res = Execute(context.Background(), src, stubRenderer{}, sel)
	assert.Equal(t, models.KindTransport, models.Kind(res.Err))
	assert.Contains(t, res.Err.Error(), "source exploded")
}

func TestFailedStartupStartsFailed(t *testing.T) {
	src := newFakeSource()
	src.err = &models.TransportError{URL: "http://api", Err: errors.New("connection refused")}
	c := startedController(t, src, stubRenderer{})

	snap := c.Snapshot()
	assertFailedDisplay(t, snap)
	assert.Equal(t, "Visualización de datos para la Serie de Consolas en Playstation durante 2013.", snap.Description)
}

func TestSubmitsAreSerialized(t *testing.T) {
	src := newFakeSource()
	src.rows[models.General] = []models.Row{game("Tetris", "Nintendo")}
	c := startedController(t, src, stubRenderer{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Submit(context.Background(), models.Selection{ConsoleFamily: models.General, Year: 1988})
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, 9, snap.Runs)
	assert.Equal(t, Idle, snap.State)
	src.mem.AssertSize(t, 0)
}

func TestEmptyDatasetRendersRealFigures(t *testing.T) {
	src := newFakeSource()
	c := startedController(t, src, render.New(nil))

	snap := c.Snapshot()
	require.Equal(t, Idle, snap.State)
	require.Len(t, snap.Figures, models.BundleSize)
	for _, spec := range snap.Bundle {
		assert.Empty(t, spec.Points)
	}
	for _, f := range snap.Figures {
		assert.NotEmpty(t, f.PNG)
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		sel  models.Selection
		want string
	}{
		{models.Selection{ConsoleFamily: models.General, Year: 1985}, "Visualización de datos para la Serie de Consolas en General durante 1985."},
		{models.Selection{ConsoleFamily: models.Sega, Year: 1994}, "Visualización de datos para la Serie de Consolas en Sega durante 1994."},
		{models.Selection{ConsoleFamily: models.Microsoft, Year: 2016}, "Visualización de datos para la Serie de Consolas en Microsoft durante 2016."},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Describe(c.sel))
		assert.Equal(t, Describe(c.sel), Describe(c.sel))
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "failed", Failed.String())
}
