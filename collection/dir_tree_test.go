package collection

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io/ioutil"
	"os"
	"path"
	"testing"

	"golang.org/x/net/context"

	"github.com/nci/gridset/dataset"
)

func writeRawGrid(t *testing.T, filePath, name string, data []int16) {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filePath, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	sidecar := `name: ` + name + `
type: Int16
no_data: -9999
dimensions: yx
origin: [0, 0]
cell_size: [1, 1]
counts: [4, 4]
srs:
  authority: EPSG:4326
attributes:
  product: test
`
	if err := ioutil.WriteFile(filePath+".yaml", []byte(sidecar), 0644); err != nil {
		t.Fatal(err)
	}
}

// buildTree lays out a small catalog:
//
//	root/
//	  notes.txt          (no sidecar, not a member)
//	  sst.bin  + .yaml
//	  sub/
//	    chl.bin + .yaml
func buildTree(t *testing.T) string {
	t.Helper()
	root, err := ioutil.TempDir("", "tree")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(root) })

	data := make([]int16, 16)
	for i := range data {
		data[i] = int16(i)
	}
	writeRawGrid(t, path.Join(root, "sst.bin"), "sst", data)

	if err := os.Mkdir(path.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeRawGrid(t, path.Join(root, "sub", "chl.bin"), "chl", data)

	if err := ioutil.WriteFile(path.Join(root, "notes.txt"), []byte("not a dataset"), 0644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestListMembers(t *testing.T) {
	root := buildTree(t)
	dt, err := NewDirectoryTree(root)
	if err != nil {
		t.Fatal(err)
	}

	members, err := dt.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}

	byID := map[string]*dataset.MemberDescriptor{}
	for _, m := range members {
		byID[m.ID] = m
	}

	sst, ok := byID["sst.bin"]
	if !ok {
		t.Fatalf("sst.bin missing from listing: %v", byID)
	}
	if sst.Kind != dataset.KindGrid || sst.Name != "sst" {
		t.Errorf("unexpected sst descriptor: %+v", sst)
	}
	if len(sst.Signature) == 0 {
		t.Errorf("file members must carry a signature")
	}
	if sst.Attributes["product"] != "test" {
		t.Errorf("sidecar attributes not surfaced: %v", sst.Attributes)
	}
	if sst.Footprint == nil {
		t.Errorf("yx member should carry a footprint")
	}

	if sub, ok := byID["sub"]; !ok || sub.Kind != dataset.KindCollection {
		t.Errorf("sub directory should list as a nested collection")
	}
	if _, ok := byID["sub/chl.bin"]; !ok {
		t.Errorf("nested member sub/chl.bin missing")
	}
}

func TestListFilter(t *testing.T) {
	root := buildTree(t)
	dt, err := NewDirectoryTree(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	members, err := dt.List(ctx, `type == "collection"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].ID != "sub" {
		t.Errorf("collection filter: expected [sub], got %v", members)
	}

	members, err = dt.List(ctx, `name == "chl"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].ID != "sub/chl.bin" {
		t.Errorf("name filter: expected [sub/chl.bin], got %v", members)
	}

	if _, err := dt.List(ctx, `owner == "me"`); err == nil {
		t.Errorf("filter with an unknown variable should be rejected")
	}
}

func TestResolve(t *testing.T) {
	root := buildTree(t)
	dt, err := NewDirectoryTree(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// Exact relative path.
	ds, err := dt.Resolve(ctx, "sst.bin")
	if err != nil {
		t.Fatal(err)
	}
	g, ok := ds.(dataset.Grid)
	if !ok {
		t.Fatalf("sst.bin should resolve to a grid, got %T", ds)
	}
	defer g.Close()
	block, err := g.ReadBlock([]int{1, 0}, []int{1, 4})
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 4; x++ {
		if block.At(x) != float64(4+x) {
			t.Errorf("row 1 cell %d: expected %d, got %v", x, 4+x, block.At(x))
		}
	}

	// By member name, anywhere in the tree.
	ds, err = dt.Resolve(ctx, "chl")
	if err != nil {
		t.Fatal(err)
	}
	if ds.DisplayName() != "chl" {
		t.Errorf("expected chl, got %s", ds.DisplayName())
	}
	if g, ok := ds.(dataset.Grid); ok {
		g.Close()
	}

	// Directory resolves to a nested collection.
	ds, err = dt.Resolve(ctx, "sub")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ds.(dataset.Collection); !ok {
		t.Errorf("sub should resolve to a collection, got %T", ds)
	}

	var notFound *dataset.NotFoundError
	if _, err := dt.Resolve(ctx, "no_such_member"); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestResolveAmbiguousName(t *testing.T) {
	root := buildTree(t)
	// A second member named sst in a different directory.
	writeRawGrid(t, path.Join(root, "sub", "sst2.bin"), "sst", make([]int16, 16))

	dt, err := NewDirectoryTree(root)
	if err != nil {
		t.Fatal(err)
	}

	_, err = dt.Resolve(context.Background(), "sst")
	var ambiguous *dataset.AmbiguousIdentifierError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousIdentifierError, got %v", err)
	}
	if len(ambiguous.Matches) != 2 {
		t.Errorf("expected 2 matches, got %v", ambiguous.Matches)
	}
}

func TestSymlinkCycle(t *testing.T) {
	root := buildTree(t)
	if err := os.Symlink(root, path.Join(root, "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	// Links are inert unless traversal is asked for.
	dt, err := NewDirectoryTree(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dt.List(context.Background(), ""); err != nil {
		t.Errorf("links must be skipped by default: %v", err)
	}

	dt, err = NewDirectoryTree(root, FollowSymlinks())
	if err != nil {
		t.Fatal(err)
	}
	_, err = dt.List(context.Background(), "")
	var cyclic *dataset.CyclicCollectionError
	if !errors.As(err, &cyclic) {
		t.Fatalf("expected CyclicCollectionError, got %v", err)
	}
}

func TestListCancelled(t *testing.T) {
	root := buildTree(t)
	dt, err := NewDirectoryTree(root)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dt.List(ctx, ""); err == nil {
		t.Errorf("cancelled context should abort the scan")
	}
}
