package render

import (
	"bytes"
	"fmt"
	"strconv"

	"dashboard/internal/models"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const titleHeight = 40

// canvas opens a white PNG canvas with the title drawn at the top.
func (r *Renderer) canvas(title string) (chart.Renderer, chart.Style, error) {
	rr, err := chart.PNG(r.Width, r.Height)
	if err != nil {
		return nil, chart.Style{}, err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, chart.Style{}, err
	}
	chart.Draw.Box(rr, chart.Box{Top: 0, Left: 0, Right: r.Width, Bottom: r.Height}, chart.Style{
		FillColor:   drawing.ColorWhite,
		StrokeColor: drawing.ColorWhite,
		StrokeWidth: 1,
	})
	text := chart.Style{Font: font, FontSize: 14, FontColor: drawing.ColorBlack}
	chart.Draw.Text(rr, title, 16, 26, text)
	return rr, text, nil
}

// blank draws a titled canvas with a "no data" hint.
func (r *Renderer) blank(title string, buf *bytes.Buffer) error {
	rr, text, err := r.canvas(title)
	if err != nil {
		return err
	}
	hint := text
	hint.FontSize = 11
	hint.FontColor = drawing.ColorFromHex("888888")
	chart.Draw.Text(rr, "Sin datos", 16, r.Height/2, hint)
	return rr.Save(buf)
}

// cell is one treemap rectangle.
type cell struct {
	left, top, right, bottom int
	point                    models.Point
}

// treemap lays points out by recursive binary partition, splitting the
// longer side so cells stay close to square.
func (r *Renderer) treemap(spec models.ChartSpec, buf *bytes.Buffer) error {
	rr, text, err := r.canvas(spec.Title)
	if err != nil {
		return err
	}
	points := make([]models.Point, 0, len(spec.Points))
	for _, p := range spec.Points {
		if p.Value > 0 {
			points = append(points, p)
		}
	}
	var cells []cell
	partition(points, 8, titleHeight, r.Width-8, r.Height-8, &cells)

	colors := colorFor(spec.Points)
	label := text
	label.FontSize = 10
	label.FontColor = drawing.ColorWhite
	for _, c := range cells {
		chart.Draw.Box(rr, chart.Box{Top: c.top, Left: c.left, Right: c.right, Bottom: c.bottom}, chart.Style{
			FillColor:   colors(c.point.Label),
			StrokeColor: drawing.ColorWhite,
			StrokeWidth: 2,
		})
		w, h := c.right-c.left, c.bottom-c.top
		if w < 40 || h < 30 {
			continue
		}
		chart.Draw.Text(rr, clip(c.point.Label, w/7), c.left+4, c.top+14, label)
		chart.Draw.Text(rr, strconv.FormatFloat(c.point.Value, 'f', -1, 64), c.left+4, c.top+28, label)
	}
	return rr.Save(buf)
}

func partition(points []models.Point, left, top, right, bottom int, out *[]cell) {
	switch len(points) {
	case 0:
		return
	case 1:
		*out = append(*out, cell{left: left, top: top, right: right, bottom: bottom, point: points[0]})
		return
	}
	total := 0.0
	for _, p := range points {
		total += p.Value
	}
	k, acc := 0, 0.0
	for k < len(points)-1 {
		acc += points[k].Value
		k++
		if acc >= total/2 {
			break
		}
	}
	frac := acc / total
	if right-left >= bottom-top {
		mid := left + int(frac*float64(right-left))
		partition(points[:k], left, top, mid, bottom, out)
		partition(points[k:], mid, top, right, bottom, out)
		return
	}
	mid := top + int(frac*float64(bottom-top))
	partition(points[:k], left, top, right, mid, out)
	partition(points[k:], left, mid, right, bottom, out)
}

func clip(s string, n int) string {
	rs := []rune(s)
	if n < 2 || len(rs) <= n {
		return s
	}
	return fmt.Sprintf("%s…", string(rs[:n-1]))
}
