// Package render turns chart specs into PNG figures with go-chart.
package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"dashboard/internal/models"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWidth  = 1024
	defaultHeight = 480
	maxBarWidth   = 48
	minBarWidth   = 4
)

// palette colours categories in first-appearance order.
var palette = []drawing.Color{
	drawing.ColorFromHex("636efa"),
	drawing.ColorFromHex("ef553b"),
	drawing.ColorFromHex("00cc96"),
	drawing.ColorFromHex("ab63fa"),
	drawing.ColorFromHex("ffa15a"),
	drawing.ColorFromHex("19d3f3"),
	drawing.ColorFromHex("ff6692"),
	drawing.ColorFromHex("b6e880"),
	drawing.ColorFromHex("ff97ff"),
	drawing.ColorFromHex("fecb52"),
}

var outline = drawing.ColorFromHex("191414")

// Renderer draws figures at a fixed canvas size.
type Renderer struct {
	Width  int
	Height int
	log    *slog.Logger
}

func New(log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		Width:  defaultWidth,
		Height: defaultHeight,
		log:    log.With(slog.String("component", "render")),
	}
}

// Render draws one spec. Specs without data produce a titled blank canvas.
func (r *Renderer) Render(spec models.ChartSpec) (models.Figure, error) {
	var buf bytes.Buffer
	var err error
	switch {
	case len(spec.Points) == 0, spec.Kind == models.KindPie && spec.Total() <= 0:
		err = r.blank(spec.Title, &buf)
	case spec.Kind == models.KindBar:
		err = r.bar(spec, &buf)
	case spec.Kind == models.KindPie:
		err = r.pie(spec, &buf)
	case spec.Kind == models.KindTreemap:
		err = r.treemap(spec, &buf)
	default:
		err = fmt.Errorf("unknown chart kind %q", spec.Kind)
	}
	if err != nil {
		return models.Figure{}, &models.RenderError{Chart: spec.ID, Err: err}
	}
	return models.Figure{ID: spec.ID, Title: spec.Title, PNG: buf.Bytes()}, nil
}

// RenderBundle renders every slot concurrently. Either all ten figures come
// back or none do.
func (r *Renderer) RenderBundle(ctx context.Context, bundle models.FigureBundle) ([]models.Figure, error) {
	t0 := time.Now()
	figs := make([]models.Figure, models.BundleSize)
	g, ctx := errgroup.WithContext(ctx)
	for i := range bundle {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = &models.RenderError{Chart: bundle[i].ID, Err: fmt.Errorf("panic: %v", p)}
				}
			}()
			if err := ctx.Err(); err != nil {
				return &models.RenderError{Chart: bundle[i].ID, Err: err}
			}
			f, err := r.Render(bundle[i])
			if err != nil {
				return err
			}
			figs[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.log.Debug("bundle rendered", slog.Duration("took", time.Since(t0)))
	return figs, nil
}

// colorFor assigns palette colours to labels by first appearance.
func colorFor(points []models.Point) func(label string) drawing.Color {
	seen := make(map[string]drawing.Color)
	for _, p := range points {
		if _, ok := seen[p.Label]; !ok {
			seen[p.Label] = palette[len(seen)%len(palette)]
		}
	}
	return func(label string) drawing.Color { return seen[label] }
}

func (r *Renderer) bar(spec models.ChartSpec, buf *bytes.Buffer) error {
	fixed := drawing.Color{}
	if spec.Color != "" {
		fixed = drawing.ColorFromHex(strings.TrimPrefix(spec.Color, "#"))
	}
	colors := colorFor(spec.Points)

	lo, hi := 0.0, 0.0
	bars := make([]chart.Value, 0, len(spec.Points))
	for _, p := range spec.Points {
		fill := fixed
		if spec.Color == "" {
			fill = colors(p.Label)
		}
		bars = append(bars, chart.Value{
			Label: p.Label,
			Value: p.Value,
			Style: chart.Style{FillColor: fill, StrokeColor: outline, StrokeWidth: 1.25},
		})
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	if hi == lo {
		hi = lo + 1
	}

	barWidth := r.Width / (len(bars) + 1) * 2 / 3
	barWidth = max(minBarWidth, min(maxBarWidth, barWidth))
	spacing := max(1, barWidth/3)
	width := max(r.Width, len(bars)*(barWidth+spacing)+160)

	bc := chart.BarChart{
		Title:      spec.Title,
		Width:      width,
		Height:     r.Height,
		BarWidth:   barWidth,
		BarSpacing: spacing,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Name:  spec.Value,
			Range: &chart.ContinuousRange{Min: lo, Max: hi * 1.05},
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, buf)
}

func (r *Renderer) pie(spec models.ChartSpec, buf *bytes.Buffer) error {
	colors := colorFor(spec.Points)
	values := make([]chart.Value, 0, len(spec.Points))
	for _, p := range spec.Points {
		if p.Value <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: p.Label,
			Value: p.Value,
			Style: chart.Style{FillColor: colors(p.Label), StrokeColor: drawing.ColorWhite, StrokeWidth: 1},
		})
	}
	pc := chart.PieChart{
		Title:  spec.Title,
		Width:  r.Height,
		Height: r.Height,
		Values: values,
	}
	return pc.Render(chart.PNG, buf)
}
