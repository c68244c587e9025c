package models

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ConsoleFamily is the console series a dataset is filtered by.
type ConsoleFamily string

const (
	General     ConsoleFamily = "general"
	PlayStation ConsoleFamily = "playstation"
	Nintendo    ConsoleFamily = "nintendo"
	Microsoft   ConsoleFamily = "microsoft"
	Sega        ConsoleFamily = "sega"
)

// ConsoleFamilies lists the selectable families in dropdown order.
var ConsoleFamilies = []ConsoleFamily{General, PlayStation, Nintendo, Microsoft, Sega}

var familyLabels = map[ConsoleFamily]string{
	General:     "General",
	PlayStation: "PlayStation",
	Nintendo:    "Nintendo",
	Microsoft:   "Microsoft",
	Sega:        "SEGA",
}

// Label is the dropdown text for the family.
func (f ConsoleFamily) Label() string {
	if l, ok := familyLabels[f]; ok {
		return l
	}
	return string(f)
}

func (f ConsoleFamily) Valid() bool {
	_, ok := familyLabels[f]
	return ok
}

// SupportedYears are the years the data service has series for.
var SupportedYears = []int{1985, 1988, 1992, 1994, 1996, 1997, 1998, 1999, 2000, 2001, 2002,
	2003, 2004, 2005, 2006, 2007, 2008, 2009, 2010, 2011, 2012, 2013,
	2014, 2015, 2016}

func supportedYear(y int) bool {
	for _, s := range SupportedYears {
		if s == y {
			return true
		}
	}
	return false
}

// Selection parameterizes one pipeline run.
type Selection struct {
	ConsoleFamily ConsoleFamily `json:"console_serie"`
	Year          int           `json:"year"`
}

// DefaultSelection is what the dashboard shows at startup.
func DefaultSelection() Selection {
	return Selection{ConsoleFamily: PlayStation, Year: 2013}
}

func (s Selection) Validate() error {
	if !s.ConsoleFamily.Valid() {
		return fmt.Errorf("%w: unknown console family %q", ErrInvalidSelection, s.ConsoleFamily)
	}
	if !supportedYear(s.Year) {
		return fmt.Errorf("%w: unsupported year %d", ErrInvalidSelection, s.Year)
	}
	return nil
}

// ParseSelection builds a validated Selection from raw form or flag values.
func ParseSelection(family, year string) (Selection, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return Selection{}, fmt.Errorf("%w: year %q is not a number", ErrInvalidSelection, year)
	}
	s := Selection{
		ConsoleFamily: ConsoleFamily(strings.ToLower(strings.TrimSpace(family))),
		Year:          y,
	}
	if err := s.Validate(); err != nil {
		return Selection{}, err
	}
	return s, nil
}

// Row is one game record as returned by the data service. Every field may be
// absent or null; nil means "no value".
type Row struct {
	Name        *string `json:"Name"`
	Platform    *string `json:"Platform"`
	Genre       *string `json:"Genre"`
	Publisher   *string `json:"Publisher"`
	Developer   *string `json:"Developer"`
	Rating      *string `json:"Rating"`
	CriticScore Number  `json:"Critic_Score"`
	UserScore   Number  `json:"User_Score"`
	GlobalSales Number  `json:"Global_Sales"`
}

// UnmarshalJSON matches field names exactly. A string field holding any
// other JSON type is treated as absent, so one odd row only drops out of the
// charts that use that field.
func (r *Row) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*r = Row{
		Name:      text(fields["Name"]),
		Platform:  text(fields["Platform"]),
		Genre:     text(fields["Genre"]),
		Publisher: text(fields["Publisher"]),
		Developer: text(fields["Developer"]),
		Rating:    text(fields["Rating"]),
	}
	for key, n := range map[string]*Number{
		"Critic_Score": &r.CriticScore,
		"User_Score":   &r.UserScore,
		"Global_Sales": &r.GlobalSales,
	} {
		if raw, ok := fields[key]; ok {
			if err := n.UnmarshalJSON(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

func text(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// Number is a lenient numeric field. JSON numbers and numeric strings are
// accepted; null, "tbd" and any other shape decode as invalid without error.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	raw := strings.TrimSpace(string(b))
	if raw == "" || raw == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'g', -1, 64)), nil
}

// Num is a convenience for building valid Numbers.
func Num(v float64) Number { return Number{Value: v, Valid: true} }

// Str returns a pointer to s, for building Rows.
func Str(s string) *string { return &s }

type ChartKind string

const (
	KindBar     ChartKind = "bar"
	KindPie     ChartKind = "pie"
	KindTreemap ChartKind = "treemap"
)

// Point is one bar, slice or treemap node. Index is the dataset row position
// for row-granularity charts and -1 for aggregated ones.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Index int     `json:"index"`
}

// ChartSpec is a renderer-agnostic description of one chart.
type ChartSpec struct {
	ID      string    `json:"id"`
	Kind    ChartKind `json:"kind"`
	Title   string    `json:"title"`
	GroupBy string    `json:"group_by"`
	Value   string    `json:"value"`
	Color   string    `json:"color,omitempty"`
	Hole    float64   `json:"hole,omitempty"`
	Points  []Point   `json:"points"`
}

// Total sums the values of all points.
func (c ChartSpec) Total() float64 {
	var t float64
	for _, p := range c.Points {
		t += p.Value
	}
	return t
}

// BundleSize is the fixed number of display slots.
const BundleSize = 10

// Slot IDs in display order.
const (
	SlotTopPublishers         = "top_publishers"
	SlotDeveloperDistribution = "developer_distribution"
	SlotTopDevelopers         = "top_developers"
	SlotRatingBreakdown       = "rating_breakdown"
	SlotGenreBreakdown        = "genre_breakdown"
	SlotPlatformSales         = "platform_sales"
	SlotSalesByPublisher      = "sales_by_publisher"
	SlotSalesByDeveloper      = "sales_by_developer"
	SlotUserScores            = "user_scores"
	SlotCriticScores          = "critic_scores"
)

// SlotIDs lists the slot IDs positionally.
var SlotIDs = [BundleSize]string{
	SlotTopPublishers,
	SlotDeveloperDistribution,
	SlotTopDevelopers,
	SlotRatingBreakdown,
	SlotGenreBreakdown,
	SlotPlatformSales,
	SlotSalesByPublisher,
	SlotSalesByDeveloper,
	SlotUserScores,
	SlotCriticScores,
}

// FigureBundle is the ordered set of the ten chart specs of one run.
type FigureBundle [BundleSize]ChartSpec

// Figure is one rendered chart.
type Figure struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	PNG   []byte `json:"-"`
}
