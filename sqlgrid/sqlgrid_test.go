package sqlgrid

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"errors"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"testing"

	"golang.org/x/net/context"

	"github.com/nci/gridset/dataset"
)

func encodeRow(t *testing.T, cells []int16) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, cells); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// createGridDB builds a 4x4 Int16 grid database where cell (y, x) holds
// y*10 + x.
func createGridDB(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "sqlgrid")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	dbPath := path.Join(dir, "grid.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE grid_meta (
			origin_y REAL, origin_x REAL, cell_y REAL, cell_x REAL,
			rows INTEGER, cols INTEGER, dtype TEXT,
			no_data REAL, unscaled_no_data REAL,
			wkt TEXT, authority TEXT, linear_unit TEXT, meters_per_unit REAL)`,
		`CREATE TABLE grid (y INTEGER PRIMARY KEY, data BLOB)`,
		`INSERT INTO grid_meta VALUES (0, 0, 1, 1, 4, 4, 'Int16', -9999, NULL, '', 'EPSG:4326', 'degree', 111319.5)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}

	for y := 0; y < 4; y++ {
		cells := make([]int16, 4)
		for x := 0; x < 4; x++ {
			cells[x] = int16(y*10 + x)
		}
		if _, err := db.Exec(`INSERT INTO grid VALUES (?, ?)`, y, encodeRow(t, cells)); err != nil {
			t.Fatal(err)
		}
	}
	return dbPath
}

func TestOpenGridMetadata(t *testing.T) {
	dbPath := createGridDB(t)

	g, err := OpenGrid("sqlite", dbPath, "")
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if g.Dtype() != dataset.Int16 {
		t.Errorf("expected Int16, got %s", g.Dtype())
	}
	if g.NoData() != -9999 {
		t.Errorf("expected NoData -9999, got %v", g.NoData())
	}
	if _, ok := g.UnscaledNoData(); ok {
		t.Errorf("null unscaled_no_data must not surface a sentinel")
	}
	extent := g.Extent()
	if extent.Dimensions != dataset.DimYX || extent.Counts[0] != 4 || extent.Counts[1] != 4 {
		t.Errorf("unexpected extent: %+v", extent)
	}
	if g.SpatialReference().Authority != "EPSG:4326" {
		t.Errorf("unexpected srs: %+v", g.SpatialReference())
	}
	if !strings.HasPrefix(g.Fingerprint(), "sql:") {
		t.Errorf("unexpected fingerprint %s", g.Fingerprint())
	}
}

func TestGridReadBlock(t *testing.T) {
	dbPath := createGridDB(t)

	g, err := OpenGrid("sqlite", dbPath, "grid")
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	block, err := g.ReadBlock([]int{0, 0}, []int{4, 4})
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got := block.At(y*4 + x); got != float64(y*10+x) {
				t.Errorf("cell (%d,%d): expected %d, got %v", y, x, y*10+x, got)
			}
		}
	}

	block, err = g.ReadBlock([]int{1, 2}, []int{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{12, 13, 22, 23}
	for i, want := range expected {
		if block.At(i) != want {
			t.Errorf("window cell %d: expected %v, got %v", i, want, block.At(i))
		}
	}

	var oob *dataset.OutOfBoundsError
	if _, err := g.ReadBlock([]int{3, 3}, []int{2, 2}); !errors.As(err, &oob) {
		t.Errorf("expected OutOfBoundsError, got %v", err)
	}
}

func TestGridMissingRows(t *testing.T) {
	dbPath := createGridDB(t)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`DELETE FROM grid WHERE y = 2`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	g, err := OpenGrid("sqlite", dbPath, "grid")
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if _, err := g.ReadBlock([]int{1, 0}, []int{3, 4}); err == nil {
		t.Errorf("a window over a missing raster row should fail")
	}
	// Windows clear of the hole still read.
	if _, err := g.ReadBlock([]int{0, 0}, []int{2, 4}); err != nil {
		t.Errorf("window before the hole should read: %v", err)
	}
}

func TestClosedGridRead(t *testing.T) {
	dbPath := createGridDB(t)

	g, err := OpenGrid("sqlite", dbPath, "grid")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	if err := g.Close(); err != nil {
		t.Errorf("double close should be harmless: %v", err)
	}

	var unavailable *dataset.BackendUnavailableError
	if _, err := g.ReadBlock([]int{0, 0}, []int{1, 1}); !errors.As(err, &unavailable) {
		t.Errorf("expected BackendUnavailableError after close, got %v", err)
	}
}

func TestOpenGridRejectsBadIdentifiers(t *testing.T) {
	if _, err := OpenGrid("sqlite", "ignored.db", "grid; DROP TABLE grid"); err == nil {
		t.Errorf("table identifiers must be validated")
	}
	if _, err := OpenTable("sqlite", "ignored.db", "obs--"); err == nil {
		t.Errorf("table identifiers must be validated")
	}
}

func TestTableSelect(t *testing.T) {
	dir, err := ioutil.TempDir("", "sqltable")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	dbPath := path.Join(dir, "obs.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE obs (id INTEGER, station TEXT, value REAL)`); err != nil {
		t.Fatal(err)
	}
	seed := []struct {
		id      int
		station string
		value   float64
	}{
		{1, "NRSMAI", 14.5},
		{2, "NRSKAI", 18.2},
		{3, "NRSMAI", 15.1},
	}
	for _, row := range seed {
		if _, err := db.Exec(`INSERT INTO obs VALUES (?, ?, ?)`, row.id, row.station, row.value); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	tbl, err := OpenTable("sqlite", dbPath, "obs")
	if err != nil {
		t.Fatal(err)
	}
	defer tbl.Close()

	fields := tbl.Fields()
	if len(fields) != 3 || fields[0].Name != "id" || fields[1].Name != "station" || fields[2].Name != "value" {
		t.Fatalf("unexpected fields: %+v", fields)
	}

	cursor, err := tbl.Select(context.Background(), "station = ?", "NRSMAI")
	if err != nil {
		t.Fatal(err)
	}
	defer cursor.Close()

	var total float64
	count := 0
	for cursor.Next() {
		var id int
		var station string
		var value float64
		if err := cursor.Scan(&id, &station, &value); err != nil {
			t.Fatal(err)
		}
		total += value
		count++
	}
	if err := cursor.Err(); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 NRSMAI rows, got %d", count)
	}
	if total != 14.5+15.1 {
		t.Errorf("unexpected sum %v", total)
	}
}
