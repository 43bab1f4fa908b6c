// Package sqlgrid adapts grids and tables stored in SQL databases to the
// dataset contracts. Grid cells live one raster row per database row as a
// little-endian blob; a companion _meta table carries the extent, type and
// NoData metadata. Access goes through database/sql, whose pool is safe
// for concurrent readers.
package sqlgrid

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"

	// Drivers used by the directory-tree resolver and analysis scripts:
	// pure-Go sqlite for file-backed grids, postgres for shared stores.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/context"

	"github.com/nci/gridset/cache"
	"github.com/nci/gridset/dataset"
)

const DefaultGridTable = "grid"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// placeholders renders positional placeholders in the driver's style:
// $1..$n for postgres, ? otherwise.
func placeholders(driver string, n int) []string {
	out := make([]string, n)
	for i := range out {
		if driver == "postgres" {
			out[i] = fmt.Sprintf("$%d", i+1)
		} else {
			out[i] = "?"
		}
	}
	return out
}

// Grid reads a yx raster stored as one blob row per raster row.
type Grid struct {
	db     *sql.DB
	driver string
	table  string
	dsn    string

	extent         dataset.Extent
	srs            dataset.SpatialReference
	dtype          dataset.Dtype
	noData         float64
	unscaledNoData sql.NullFloat64
	fingerprint    string
	closed         bool
}

// OpenGrid binds a grid to table within the database at dsn. An empty
// table selects DefaultGridTable. Metadata is read here once from the
// companion <table>_meta row.
func OpenGrid(driver, dsn, table string) (*Grid, error) {
	if len(table) == 0 {
		table = DefaultGridTable
	}
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: dsn, Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &dataset.BackendUnavailableError{Resource: dsn, Err: err}
	}

	g := &Grid{db: db, driver: driver, table: table, dsn: dsn}
	if err := g.resolveMetadata(); err != nil {
		db.Close()
		return nil, err
	}
	g.fingerprint = gridFingerprint(dsn, table)
	return g, nil
}

func gridFingerprint(dsn, table string) string {
	// File-backed databases use the file's modification signature so the
	// fingerprint changes when the database does.
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if sig, err := cache.FileSignature(path); err == nil {
		return fmt.Sprintf("sql:%s:%s", sig, table)
	}
	return fmt.Sprintf("sql:%016x:%s", xxhash.Sum64String(dsn), table)
}

func (g *Grid) resolveMetadata() error {
	var (
		originY, originX, cellY, cellX float64
		rows, cols                     int
		dtype                          string
		wkt, authority, linearUnit     sql.NullString
		metersPerUnit                  sql.NullFloat64
	)
	query := fmt.Sprintf(
		"SELECT origin_y, origin_x, cell_y, cell_x, rows, cols, dtype, no_data, unscaled_no_data, wkt, authority, linear_unit, meters_per_unit FROM %s_meta",
		g.table)
	err := g.db.QueryRow(query).Scan(&originY, &originX, &cellY, &cellX, &rows, &cols,
		&dtype, &g.noData, &g.unscaledNoData, &wkt, &authority, &linearUnit, &metersPerUnit)
	if err != nil {
		return &dataset.BackendUnavailableError{Resource: g.dsn, Err: fmt.Errorf("reading %s_meta: %w", g.table, err)}
	}

	g.dtype, err = dataset.ParseDtype(dtype)
	if err != nil {
		return err
	}
	g.extent, err = dataset.NewExtent(dataset.DimYX,
		[]float64{originY, originX}, []float64{cellY, cellX}, []int{rows, cols})
	if err != nil {
		return err
	}
	g.srs = dataset.SpatialReference{
		WKT:           wkt.String,
		Authority:     authority.String,
		LinearUnit:    linearUnit.String,
		MetersPerUnit: metersPerUnit.Float64,
	}
	return nil
}

func (g *Grid) DisplayName() string                        { return fmt.Sprintf("%s:%s", g.dsn, g.table) }
func (g *Grid) Kind() dataset.Kind                         { return dataset.KindGrid }
func (g *Grid) Extent() dataset.Extent                     { return g.extent }
func (g *Grid) SpatialReference() dataset.SpatialReference { return g.srs }
func (g *Grid) Dtype() dataset.Dtype                       { return g.dtype }
func (g *Grid) NoData() float64                            { return g.noData }
func (g *Grid) Fingerprint() string                        { return g.fingerprint }

func (g *Grid) UnscaledNoData() (float64, bool) {
	return g.unscaledNoData.Float64, g.unscaledNoData.Valid
}

func (g *Grid) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	return g.db.Close()
}

func (g *Grid) ReadBlock(origin, shape []int) (dataset.Block, error) {
	if err := g.extent.CheckWindow(origin, shape); err != nil {
		return nil, err
	}
	if g.closed {
		return nil, &dataset.BackendUnavailableError{Resource: g.dsn, Err: fmt.Errorf("grid is closed")}
	}

	ph := placeholders(g.driver, 2)
	query := fmt.Sprintf("SELECT y, data FROM %s WHERE y >= %s AND y < %s ORDER BY y", g.table, ph[0], ph[1])
	rows, err := g.db.Query(query, origin[0], origin[0]+shape[0])
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: g.dsn, Err: err}
	}
	defer rows.Close()

	out := dataset.NewBlock(g.dtype, shape)
	size := g.dtype.Size()
	cols := g.extent.Counts[1]
	nRows := 0
	for rows.Next() {
		var y int
		var blob []byte
		if err := rows.Scan(&y, &blob); err != nil {
			return nil, &dataset.BackendUnavailableError{Resource: g.dsn, Err: err}
		}
		if len(blob) != cols*size {
			return nil, fmt.Errorf("row %d holds %d bytes, want %d", y, len(blob), cols*size)
		}
		r := y - origin[0]
		for c := 0; c < shape[1]; c++ {
			out.Set(r*shape[1]+c, decodeCell(g.dtype, blob, origin[1]+c))
		}
		nRows++
	}
	if err := rows.Err(); err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: g.dsn, Err: err}
	}
	if nRows != shape[0] {
		return nil, fmt.Errorf("grid %s is missing rows: got %d of %d", g.table, nRows, shape[0])
	}
	return out, nil
}

func decodeCell(d dataset.Dtype, blob []byte, i int) float64 {
	switch d {
	case dataset.Byte:
		return float64(blob[i])
	case dataset.Int16:
		return float64(int16(binary.LittleEndian.Uint16(blob[i*2:])))
	case dataset.UInt16:
		return float64(binary.LittleEndian.Uint16(blob[i*2:]))
	case dataset.Int32:
		return float64(int32(binary.LittleEndian.Uint32(blob[i*4:])))
	case dataset.Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:])))
	case dataset.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return math.NaN()
}

// Table adapts one SQL table to the dataset.Table contract.
type Table struct {
	db     *sql.DB
	table  string
	dsn    string
	fields []dataset.Field
	closed bool
}

func OpenTable(driver, dsn, table string) (*Table, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: dsn, Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &dataset.BackendUnavailableError{Resource: dsn, Err: err}
	}

	t := &Table{db: db, table: table, dsn: dsn}
	if err := t.resolveFields(); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

func (t *Table) resolveFields() error {
	rows, err := t.db.Query(fmt.Sprintf("SELECT * FROM %s WHERE 1=0", t.table))
	if err != nil {
		return &dataset.BackendUnavailableError{Resource: t.dsn, Err: err}
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return &dataset.BackendUnavailableError{Resource: t.dsn, Err: err}
	}
	for _, ct := range types {
		t.fields = append(t.fields, dataset.Field{Name: ct.Name(), Type: ct.DatabaseTypeName()})
	}
	return nil
}

func (t *Table) DisplayName() string     { return fmt.Sprintf("%s:%s", t.dsn, t.table) }
func (t *Table) Kind() dataset.Kind      { return dataset.KindTable }
func (t *Table) Fields() []dataset.Field { return t.fields }

func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.db.Close()
}

func (t *Table) Select(ctx context.Context, where string, args ...interface{}) (dataset.Cursor, error) {
	if t.closed {
		return nil, &dataset.BackendUnavailableError{Resource: t.dsn, Err: fmt.Errorf("table is closed")}
	}
	query := fmt.Sprintf("SELECT * FROM %s", t.table)
	if len(strings.TrimSpace(where)) > 0 {
		query += " WHERE " + where
	}
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: t.dsn, Err: err}
	}
	return &sqlCursor{rows: rows}, nil
}

type sqlCursor struct {
	rows *sql.Rows
}

func (c *sqlCursor) Next() bool                      { return c.rows.Next() }
func (c *sqlCursor) Scan(dest ...interface{}) error  { return c.rows.Scan(dest...) }
func (c *sqlCursor) Err() error                      { return c.rows.Err() }
func (c *sqlCursor) Close() error                    { return c.rows.Close() }
