// Package pipeline runs the fetch → aggregate → render cycle behind the
// dashboard and owns what the UI currently displays.
//
// A Controller is either Idle (showing the last good figures), Running (a
// submit is in flight) or Failed (showing the unavailable notice in every
// slot). Submits are serialized; a run always completes before the next one
// starts, and a failed run never leaves a mix of old and new figures.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dashboard/internal/engine"
	"dashboard/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Notice replaces all ten figure slots after a failed run.
const Notice = "Solicitud No Disponible"

type State int

const (
	Idle State = iota
	Running
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Renderer turns a bundle into figures, all or nothing.
type Renderer interface {
	RenderBundle(ctx context.Context, bundle models.FigureBundle) ([]models.Figure, error)
}

// Result is the outcome of one run.
type Result struct {
	Bundle  models.FigureBundle
	Figures []models.Figure
	Err     error
	Took    time.Duration
}

// Snapshot is what the UI shell displays. It never aliases controller state.
type Snapshot struct {
	State       State                `json:"state"`
	Selection   models.Selection     `json:"selection"`
	Description string               `json:"description"`
	Notice      string               `json:"notice,omitempty"`
	ErrorKind   models.ErrorKind     `json:"error_kind,omitempty"`
	Bundle      *models.FigureBundle `json:"charts,omitempty"`
	Figures     []models.Figure      `json:"-"`
	Runs        int                  `json:"runs"`
	LastRun     time.Duration        `json:"last_run_ns"`
}

// Figure returns the rendered figure for slot, if the displayed run succeeded.
func (s Snapshot) Figure(slot int) (models.Figure, bool) {
	if s.Notice != "" || slot < 0 || slot >= len(s.Figures) {
		return models.Figure{}, false
	}
	return s.Figures[slot], true
}

type Controller struct {
	source   engine.DataSource
	renderer Renderer
	log      *slog.Logger

	run sync.Mutex // serializes submits

	mu        sync.RWMutex
	state     State
	selection models.Selection
	result    Result
	runs      int
}

type stage int

const (
	stageFetch stage = iota
	stageAggregate
	stageRender
)

// panicError reports a panic as an error of the stage that raised it.
func (st stage) panicError(r any) error {
	err := fmt.Errorf("panic: %v", r)
	switch st {
	case stageFetch:
		return &models.TransportError{Err: err}
	case stageRender:
		return &models.RenderError{Chart: "bundle", Err: err}
	default:
		return &models.AggregationError{Err: err}
	}
}

// Execute runs fetch → aggregate → render once for sel. A panic is reported
// with the error kind of the stage it came from.
func Execute(ctx context.Context, source engine.DataSource, renderer Renderer, sel models.Selection) (res Result) {
	t0 := time.Now()
	st := stageFetch
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: st.panicError(r)}
		}
		res.Took = time.Since(t0)
	}()
	res.Bundle, res.Figures, res.Err = execute(ctx, source, renderer, sel, &st)
	return res
}

func execute(ctx context.Context, source engine.DataSource, renderer Renderer, sel models.Selection, st *stage) (models.FigureBundle, []models.Figure, error) {
	*st = stageFetch
	store, err := source.Fetch(ctx, sel)
	if err != nil {
		return models.FigureBundle{}, nil, err
	}
	defer store.Release()

	*st = stageAggregate
	bundle, err := store.Aggregate()
	if err != nil {
		return models.FigureBundle{}, nil, err
	}
	*st = stageRender
	figs, err := renderer.RenderBundle(ctx, bundle)
	if err != nil {
		return models.FigureBundle{}, nil, err
	}
	if len(figs) != models.BundleSize {
		return models.FigureBundle{}, nil, &models.RenderError{Chart: "bundle", Err: fmt.Errorf("got %d figures", len(figs))}
	}
	return bundle, figs, nil
}

// Initialize runs the pipeline once for the default selection. The result
// seeds New; a failed startup run is returned as is, not as an error.
func Initialize(ctx context.Context, source engine.DataSource, renderer Renderer) (models.Selection, Result) {
	sel := models.DefaultSelection()
	return sel, Execute(ctx, source, renderer, sel)
}

// New returns a controller displaying initial, which is the startup run for sel.
func New(source engine.DataSource, renderer Renderer, sel models.Selection, initial Result, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		source:    source,
		renderer:  renderer,
		log:       log.With(slog.String("component", "pipeline")),
		selection: sel,
		runs:      1,
	}
	c.settle(sel, initial)
	return c
}

// Submit runs the pipeline for sel and returns what is displayed afterwards.
// It never fails: errors move the controller to Failed and are logged.
func (c *Controller) Submit(ctx context.Context, sel models.Selection) Snapshot {
	c.run.Lock()
	defer c.run.Unlock()

	c.mu.Lock()
	c.state = Running
	c.selection = sel
	c.mu.Unlock()

	res := Execute(ctx, c.source, c.renderer, sel)

	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
	c.settle(sel, res)
	return c.Snapshot()
}

// settle records res as the displayed outcome for sel.
func (c *Controller) settle(sel models.Selection, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res.Err != nil {
		c.log.Error("pipeline run failed",
			slog.String("console_serie", string(sel.ConsoleFamily)),
			slog.Int("year", sel.Year),
			slog.String("kind", string(models.Kind(res.Err))),
			slog.Any("error", res.Err))
		c.state = Failed
		c.result = Result{Err: res.Err, Took: res.Took}
		return
	}
	c.log.Info("pipeline run complete",
		slog.String("console_serie", string(sel.ConsoleFamily)),
		slog.Int("year", sel.Year),
		slog.Duration("took", res.Took))
	c.state = Idle
	c.result = res
}

// Snapshot returns the current display.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		State:       c.state,
		Selection:   c.selection,
		Description: Describe(c.selection),
		Runs:        c.runs,
		LastRun:     c.result.Took,
	}
	// While Running, the previous outcome stays on display.
	if c.result.Err != nil {
		s.Notice = Notice
		s.ErrorKind = models.Kind(c.result.Err)
		return s
	}
	bundle := c.result.Bundle
	s.Bundle = &bundle
	s.Figures = append([]models.Figure(nil), c.result.Figures...)
	return s
}

// State reports the controller state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Describe is the description line for sel. It depends on nothing else.
func Describe(sel models.Selection) string {
	// Casers are stateful; one per call.
	family := cases.Title(language.Spanish).String(string(sel.ConsoleFamily))
	return fmt.Sprintf("Visualización de datos para la Serie de Consolas en %s durante %d.", family, sel.Year)
}
