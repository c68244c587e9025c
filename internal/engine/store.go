package engine

import (
	"fmt"

	"dashboard/internal/models"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// Column names, exactly as the data service spells them.
const (
	ColName        = "Name"
	ColPlatform    = "Platform"
	ColGenre       = "Genre"
	ColPublisher   = "Publisher"
	ColDeveloper   = "Developer"
	ColRating      = "Rating"
	ColCriticScore = "Critic_Score"
	ColUserScore   = "User_Score"
	ColGlobalSales = "Global_Sales"
)

// Schema is the columnar layout of a dataset. Every column is nullable; a
// null means the row had no usable value for that field.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: ColName, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColPlatform, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColGenre, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColPublisher, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColDeveloper, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColRating, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColCriticScore, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: ColUserScore, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: ColGlobalSales, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

// ColumnStore holds one dataset in Struct-of-Arrays form, backed by an Arrow
// record. It is read-only and must be released by its owner.
type ColumnStore struct {
	rec arrow.Record
}

// NewColumnStore loads rows into a fresh record, preserving their order.
func NewColumnStore(mem memory.Allocator, rows []models.Row) *ColumnStore {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	str := func(i int) *array.StringBuilder { return b.Field(i).(*array.StringBuilder) }
	num := func(i int) *array.Float64Builder { return b.Field(i).(*array.Float64Builder) }

	for i := range Schema.Fields() {
		b.Field(i).Reserve(len(rows))
	}
	for _, r := range rows {
		appendString(str(0), r.Name)
		appendString(str(1), r.Platform)
		appendString(str(2), r.Genre)
		appendString(str(3), r.Publisher)
		appendString(str(4), r.Developer)
		appendString(str(5), r.Rating)
		appendNumber(num(6), r.CriticScore)
		appendNumber(num(7), r.UserScore)
		appendNumber(num(8), r.GlobalSales)
	}
	return &ColumnStore{rec: b.NewRecord()}
}

func appendString(b *array.StringBuilder, v *string) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func appendNumber(b *array.Float64Builder, v models.Number) {
	if !v.Valid {
		b.AppendNull()
		return
	}
	b.Append(v.Value)
}

// Len is the number of rows.
func (cs *ColumnStore) Len() int {
	if cs == nil || cs.rec == nil {
		return 0
	}
	return int(cs.rec.NumRows())
}

// Release drops the store's reference to the underlying buffers.
func (cs *ColumnStore) Release() {
	if cs != nil && cs.rec != nil {
		cs.rec.Release()
		cs.rec = nil
	}
}

func (cs *ColumnStore) column(name string) (arrow.Array, error) {
	if cs == nil || cs.rec == nil {
		return nil, fmt.Errorf("dataset released")
	}
	idx := cs.rec.Schema().FieldIndices(name)
	if len(idx) != 1 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return cs.rec.Column(idx[0]), nil
}

// Strings returns the named string column.
func (cs *ColumnStore) Strings(name string) (*array.String, error) {
	col, err := cs.column(name)
	if err != nil {
		return nil, err
	}
	s, ok := col.(*array.String)
	if !ok {
		return nil, fmt.Errorf("column %q is %s, want utf8", name, col.DataType())
	}
	return s, nil
}

// Floats returns the named float64 column.
func (cs *ColumnStore) Floats(name string) (*array.Float64, error) {
	col, err := cs.column(name)
	if err != nil {
		return nil, err
	}
	f, ok := col.(*array.Float64)
	if !ok {
		return nil, fmt.Errorf("column %q is %s, want float64", name, col.DataType())
	}
	return f, nil
}
