// Package datagen produces synthetic CSV input for file-mode pipelines
// and stages it in the pipeline's inbound prefix.
package datagen

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/dagforge/internal/ingestion"
	"github.com/leapstack-labs/dagforge/internal/objstore"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// Columns appended to every generated table.
const (
	CreatedDateColumn = "record_created_date"
	UpdatedAtColumn   = "last_updated_timestamp"
)

// Layouts used for generated values.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
	objectLayout    = "2006-01-02-15"
)

// Kind is the value family of a generated column.
type Kind string

// Supported kinds.
const (
	KindString    Kind = "string"
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindTimestamp Kind = "timestamp"
)

// ParseKind maps a schema type (STRING, INT64, ...) to a Kind.
func ParseKind(typ string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "string", "str":
		return KindString, nil
	case "integer", "int", "int64":
		return KindInteger, nil
	case "float", "float64", "numeric", "bignumeric":
		return KindFloat, nil
	case "boolean", "bool":
		return KindBoolean, nil
	case "date":
		return KindDate, nil
	case "timestamp", "datetime":
		return KindTimestamp, nil
	default:
		return "", fmt.Errorf("unsupported field type %q", typ)
	}
}

// SchemaType returns the staging-table column type for k.
func (k Kind) SchemaType() string {
	switch k {
	case KindInteger:
		return "INT64"
	case KindFloat:
		return "FLOAT64"
	case KindBoolean:
		return "BOOL"
	case KindDate:
		return "DATE"
	case KindTimestamp:
		return "TIMESTAMP"
	default:
		return "STRING"
	}
}

// Schema returns the staging-table schema for fields, audit columns included.
func Schema(fields []Field) []core.SchemaField {
	out := make([]core.SchemaField, 0, len(fields)+2)
	for _, f := range withAuditColumns(fields) {
		out = append(out, core.SchemaField{Name: f.Name, Type: f.Kind.SchemaType(), Mode: "NULLABLE"})
	}
	return out
}

func withAuditColumns(fields []Field) []Field {
	out := slices.Clone(fields)
	has := func(name string) bool {
		return slices.ContainsFunc(out, func(f Field) bool { return f.Name == name })
	}
	if !has(CreatedDateColumn) {
		out = append(out, Field{Name: CreatedDateColumn, Kind: KindDate})
	}
	if !has(UpdatedAtColumn) {
		out = append(out, Field{Name: UpdatedAtColumn, Kind: KindTimestamp})
	}
	return out
}

// Field is one generated column.
type Field struct {
	Name string
	Kind Kind
}

// FieldsFromSchema converts a staging-table schema into fields.
func FieldsFromSchema(schema []core.SchemaField) ([]Field, error) {
	fields := make([]Field, 0, len(schema))
	for _, f := range schema {
		kind, err := ParseKind(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, Field{Name: f.Name, Kind: kind})
	}
	return fields, nil
}

// HealthcarePatients is the default patient-admission profile.
var HealthcarePatients = []Field{
	{Name: "PatientID", Kind: KindString},
	{Name: "Name", Kind: KindString},
	{Name: "Age", Kind: KindInteger},
	{Name: "Gender", Kind: KindString},
	{Name: "HospitalID", Kind: KindString},
	{Name: "Location", Kind: KindString},
	{Name: "AdmissionDate", Kind: KindDate},
	{Name: "DischargeDate", Kind: KindDate},
	{Name: "Department", Kind: KindString},
	{Name: "Vitals_BP", Kind: KindString},
	{Name: "Vitals_Pulse", Kind: KindInteger},
}

// stringPools holds realistic values for well-known column names,
// keyed by lower-cased name.
var stringPools = map[string][]string{
	"name":       {"John Doe", "Alice Smith", "Raj Patel", "Emily Wang"},
	"gender":     {"Male", "Female", "Other"},
	"hospitalid": {"HOSP1001", "HOSP1002", "HOSP1003"},
	"location":   {"New York", "San Francisco", "Chicago"},
	"department": {"Cardiology", "Neurology", "Pediatrics", "Oncology"},
}

// Table is a generated data set.
type Table struct {
	Header []string
	Rows   [][]string
}

// Generator produces reproducible records: the same seed, clock and
// fields always yield the same table.
type Generator struct {
	rng *rand.Rand
	now time.Time
}

// New creates a generator. now anchors dates and the audit columns.
func New(seed uint64, now time.Time) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now,
	}
}

// Read fills p from the generator's stream so seeded UUIDs are stable.
func (g *Generator) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(g.rng.Uint32())
	}
	return len(p), nil
}

// Generate builds n rows for fields. The audit columns are appended
// unless the fields already define them.
func (g *Generator) Generate(fields []Field, n int) (Table, error) {
	if n < 0 {
		return Table{}, fmt.Errorf("row count must not be negative, got %d", n)
	}

	header := make([]string, 0, len(fields)+2)
	for _, f := range fields {
		header = append(header, f.Name)
	}
	addCreated := !slices.Contains(header, CreatedDateColumn)
	addUpdated := !slices.Contains(header, UpdatedAtColumn)
	if addCreated {
		header = append(header, CreatedDateColumn)
	}
	if addUpdated {
		header = append(header, UpdatedAtColumn)
	}

	rows := make([][]string, 0, n)
	for range n {
		row := make([]string, 0, len(header))
		for _, f := range fields {
			v, err := g.value(f)
			if err != nil {
				return Table{}, err
			}
			row = append(row, v)
		}
		if addCreated {
			row = append(row, g.now.Format(DateLayout))
		}
		if addUpdated {
			row = append(row, g.now.Format(TimestampLayout))
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}, nil
}

func (g *Generator) value(f Field) (string, error) {
	key := strings.ToLower(f.Name)
	switch f.Kind {
	case KindString:
		if pool, ok := stringPools[key]; ok {
			return pool[g.rng.IntN(len(pool))], nil
		}
		switch {
		case key == "vitals_bp":
			return fmt.Sprintf("%d/%d", g.between(90, 130), g.between(60, 90)), nil
		case strings.HasSuffix(key, "uuid"):
			id, err := uuid.NewRandomFromReader(g)
			if err != nil {
				return "", err
			}
			return id.String(), nil
		default:
			return fmt.Sprintf("%s_%d", f.Name, g.between(1000, 9999)), nil
		}
	case KindInteger:
		if key == "vitals_pulse" {
			return strconv.Itoa(g.between(60, 100)), nil
		}
		return strconv.Itoa(g.between(1, 100)), nil
	case KindFloat:
		return strconv.FormatFloat(float64(g.between(0, 100000))/100, 'f', 2, 64), nil
	case KindBoolean:
		return strconv.FormatBool(g.rng.IntN(2) == 1), nil
	case KindDate:
		return g.daysAgo().Format(DateLayout), nil
	case KindTimestamp:
		ts := g.daysAgo().Add(time.Duration(g.rng.Int64N(int64(24 * time.Hour))))
		return ts.Format(TimestampLayout), nil
	default:
		return "", fmt.Errorf("field %s: unsupported kind %q", f.Name, f.Kind)
	}
}

// between returns a value in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) daysAgo() time.Time {
	return g.now.AddDate(0, 0, -g.between(1, 1000))
}

// WriteCSV writes t with a header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// ObjectName returns inbound/<pipeline_id>_<YYYY-MM-DD-HH>.csv.
func ObjectName(pipelineID string, at time.Time) string {
	return ingestion.InboundPrefix + pipelineID + "_" + at.Format(objectLayout) + ingestion.FileSuffix
}

// Upload writes t as CSV to ObjectName(pipelineID, at) in bucket.
func Upload(ctx context.Context, c objstore.Client, bucket, pipelineID string, t Table, at time.Time) (objstore.ObjectRef, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return objstore.ObjectRef{}, err
	}
	ref, err := c.Put(ctx, bucket, ObjectName(pipelineID, at), &buf)
	if err != nil {
		return objstore.ObjectRef{}, fmt.Errorf("upload %s: %w", pipelineID, err)
	}
	return ref, nil
}
