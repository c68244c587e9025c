package api

import (
	"context"
	"encoding/base64"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"dashboard/internal/models"
	"dashboard/internal/pipeline"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	ctrl *pipeline.Controller
	log  *slog.Logger
}

func NewHandler(ctrl *pipeline.Controller, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ctrl: ctrl, log: log.With(slog.String("component", "api"))}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Index)
	e.POST("/submit", h.SubmitForm)
	e.GET("/healthz", h.Health)

	api := e.Group("/api")
	api.GET("/options", h.GetOptions)
	api.GET("/dashboard", h.GetDashboard)
	api.POST("/dashboard", h.PostDashboard)
	api.GET("/figures/:slot", h.GetFigure)
}

// --- HTML ---

type option struct {
	Value    string
	Label    string
	Selected bool
}

type slot struct {
	ID    string
	Title string
	Src   template.URL
	Half  bool
}

type page struct {
	Families    []option
	Years       []option
	Description string
	Notice      string
	Slots       []slot
}

// Slots 2 to 5 share a row, two per line.
func halfWidth(i int) bool { return i >= 2 && i <= 5 }

func pageFor(snap pipeline.Snapshot) page {
	p := page{Description: snap.Description, Notice: snap.Notice}
	for _, f := range models.ConsoleFamilies {
		p.Families = append(p.Families, option{
			Value:    string(f),
			Label:    f.Label(),
			Selected: f == snap.Selection.ConsoleFamily,
		})
	}
	for _, y := range models.SupportedYears {
		p.Years = append(p.Years, option{
			Value:    strconv.Itoa(y),
			Label:    strconv.Itoa(y),
			Selected: y == snap.Selection.Year,
		})
	}
	for i := range models.SlotIDs {
		f, ok := snap.Figure(i)
		if !ok {
			continue
		}
		p.Slots = append(p.Slots, slot{
			ID:    f.ID,
			Title: f.Title,
			Src:   template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(f.PNG)),
			Half:  halfWidth(i),
		})
	}
	return p
}

// Index renders the dashboard page for the current display.
func (h *Handler) Index(c echo.Context) error {
	return c.Render(http.StatusOK, "index", pageFor(h.ctrl.Snapshot()))
}

// SubmitForm runs the pipeline for the posted selection and redirects to
// the page.
func (h *Handler) SubmitForm(c echo.Context) error {
	sel, err := models.ParseSelection(c.FormValue("console_serie"), c.FormValue("year"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	h.submit(c, sel)
	return c.Redirect(http.StatusSeeOther, "/")
}

// --- JSON ---

type optionsResponse struct {
	ConsoleSeries []familyOption   `json:"console_series"`
	Years         []int            `json:"years"`
	Default       models.Selection `json:"default"`
}

type familyOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func (h *Handler) GetOptions(c echo.Context) error {
	resp := optionsResponse{Years: models.SupportedYears, Default: models.DefaultSelection()}
	for _, f := range models.ConsoleFamilies {
		resp.ConsoleSeries = append(resp.ConsoleSeries, familyOption{Label: f.Label(), Value: string(f)})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

type submitRequest struct {
	ConsoleSerie string `json:"console_serie"`
	Year         int    `json:"year"`
}

// PostDashboard runs the pipeline and returns the resulting display. Pipeline
// failures still answer 200: the notice is the display.
func (h *Handler) PostDashboard(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	sel, err := models.ParseSelection(req.ConsoleSerie, strconv.Itoa(req.Year))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, h.submit(c, sel))
}

// GetFigure serves the PNG of one display slot.
func (h *Handler) GetFigure(c echo.Context) error {
	i, err := strconv.Atoi(c.Param("slot"))
	if err != nil || i < 0 || i >= models.BundleSize {
		return echo.NewHTTPError(http.StatusNotFound, "unknown slot")
	}
	snap := h.ctrl.Snapshot()
	f, ok := snap.Figure(i)
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"notice": pipeline.Notice})
	}
	return c.Blob(http.StatusOK, "image/png", f.PNG)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "state": h.ctrl.State().String()})
}

// submit runs the pipeline detached from the request: a run is never
// cancelled once started.
func (h *Handler) submit(c echo.Context, sel models.Selection) pipeline.Snapshot {
	h.log.Debug("submit", slog.String("console_serie", string(sel.ConsoleFamily)), slog.Int("year", sel.Year))
	return h.ctrl.Submit(context.WithoutCancel(c.Request().Context()), sel)
}
