package collection

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	goeval "github.com/edisonguo/govaluate"
	geo "github.com/nci/geometry"
	"golang.org/x/net/context"

	"github.com/nci/gridset/cache"
	"github.com/nci/gridset/dataset"
	"github.com/nci/gridset/ncgrid"
	"github.com/nci/gridset/sqlgrid"
)

// DirectoryTree exposes a filesystem directory as a Collection. Files
// become grid or table members according to their extension and yaml
// sidecar; subdirectories become nested collections. Every List call
// re-scans the storage.
type DirectoryTree struct {
	root           string
	name           string
	followSymlinks bool
	verbose        bool
}

type TreeOption func(*DirectoryTree)

// FollowSymlinks enables traversal through symbolic links. Cycles in the
// linked storage surface as CyclicCollectionError rather than hanging the
// traversal.
func FollowSymlinks() TreeOption {
	return func(dt *DirectoryTree) { dt.followSymlinks = true }
}

func Verbose() TreeOption {
	return func(dt *DirectoryTree) { dt.verbose = true }
}

func NewDirectoryTree(rootDir string, opts ...TreeOption) (*DirectoryTree, error) {
	absRootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	fStat, err := os.Stat(absRootDir)
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: rootDir, Err: err}
	}
	if !fStat.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", rootDir)
	}

	dt := &DirectoryTree{
		root: absRootDir,
		name: path.Base(absRootDir),
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt, nil
}

func (dt *DirectoryTree) DisplayName() string { return dt.name }
func (dt *DirectoryTree) Kind() dataset.Kind  { return dataset.KindCollection }

type devIno struct {
	dev uint64
	ino uint64
}

// fileIdentity keys a directory for cycle detection. Falls back to the
// fully resolved path on platforms without Stat_t.
func fileIdentity(p string, fStat os.FileInfo) (devIno, string) {
	if stat, ok := fStat.Sys().(*syscall.Stat_t); ok {
		return devIno{dev: uint64(stat.Dev), ino: uint64(stat.Ino)}, ""
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		resolved = p
	}
	return devIno{}, resolved
}

func (dt *DirectoryTree) List(ctx context.Context, filter string) ([]*dataset.MemberDescriptor, error) {
	expr, err := parseFilterExpression(filter)
	if err != nil {
		return nil, err
	}

	visitedIno := map[devIno]bool{}
	visitedPath := map[string]bool{}
	var members []*dataset.MemberDescriptor
	err = dt.walk(ctx, dt.root, expr, visitedIno, visitedPath, &members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (dt *DirectoryTree) walk(ctx context.Context, dir string, expr *goeval.EvaluableExpression, visitedIno map[devIno]bool, visitedPath map[string]bool, members *[]*dataset.MemberDescriptor) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fStat, err := os.Stat(dir)
	if err != nil {
		return &dataset.BackendUnavailableError{Resource: dir, Err: err}
	}
	ino, resolved := fileIdentity(dir, fStat)
	if resolved == "" {
		if visitedIno[ino] {
			return &dataset.CyclicCollectionError{Path: dir}
		}
		visitedIno[ino] = true
	} else {
		if visitedPath[resolved] {
			return &dataset.CyclicCollectionError{Path: dir}
		}
		visitedPath[resolved] = true
	}

	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return &dataset.BackendUnavailableError{Resource: dir, Err: err}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		filePath := path.Join(dir, entry.Name())

		isLink := entry.Mode()&os.ModeSymlink != 0
		if isLink && !dt.followSymlinks {
			continue
		}

		fi := entry
		if isLink {
			fi, err = os.Stat(filePath)
			if err != nil {
				if dt.verbose {
					log.Printf("DirectoryTree: broken link %s: %v", filePath, err)
				}
				continue
			}
		}

		if fi.IsDir() {
			desc, err := dt.describeDir(filePath, expr)
			if err != nil {
				return err
			}
			if desc != nil {
				*members = append(*members, desc)
			}
			if err := dt.walk(ctx, filePath, expr, visitedIno, visitedPath, members); err != nil {
				return err
			}
			continue
		}

		if !fi.Mode().IsRegular() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		desc, err := dt.describeFile(filePath, expr)
		if err != nil {
			return err
		}
		if desc != nil {
			*members = append(*members, desc)
		}
	}
	return nil
}

func (dt *DirectoryTree) relID(p string) string {
	rel, err := filepath.Rel(dt.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

func (dt *DirectoryTree) describeDir(dirPath string, expr *goeval.EvaluableExpression) (*dataset.MemberDescriptor, error) {
	name := path.Base(dirPath)
	match, err := evaluateFilter(expr, dirPath, name, string(dataset.KindCollection))
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, nil
	}
	return &dataset.MemberDescriptor{
		ID:   dt.relID(dirPath),
		Name: name,
		Kind: dataset.KindCollection,
		Path: dirPath,
	}, nil
}

// memberKind classifies a data file from its extension and sidecar.
func memberKind(filePath string, sc *Sidecar) (dataset.Kind, bool) {
	if sc != nil && sc.Kind == "table" {
		return dataset.KindTable, true
	}
	switch strings.ToLower(path.Ext(filePath)) {
	case ".nc":
		return dataset.KindGrid, true
	case ".sqlite", ".db":
		return dataset.KindGrid, true
	case ".bin":
		return dataset.KindGrid, sc != nil
	}
	// Unknown formats are only surfaced when a sidecar claims them.
	return dataset.KindGrid, sc != nil
}

func (dt *DirectoryTree) describeFile(filePath string, expr *goeval.EvaluableExpression) (*dataset.MemberDescriptor, error) {
	sc, err := loadSidecar(filePath)
	if err != nil {
		return nil, err
	}

	kind, ok := memberKind(filePath, sc)
	if !ok {
		return nil, nil
	}

	name := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	if sc != nil && len(sc.Name) > 0 {
		name = sc.Name
	}

	match, err := evaluateFilter(expr, filePath, name, string(kind))
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, nil
	}

	signature, err := cache.FileSignature(filePath)
	if err != nil {
		return nil, &dataset.BackendUnavailableError{Resource: filePath, Err: err}
	}

	desc := &dataset.MemberDescriptor{
		ID:        dt.relID(filePath),
		Name:      name,
		Kind:      kind,
		Path:      filePath,
		Signature: signature,
	}
	if sc != nil {
		desc.Attributes = sc.Attributes
		desc.Footprint = sidecarFootprint(sc)
	}
	return desc, nil
}

// sidecarFootprint builds a GeoJSON footprint feature from a yx extent.
func sidecarFootprint(sc *Sidecar) *geo.Feature {
	if sc.Dimensions != dataset.DimYX || len(sc.Origin) != 2 {
		return nil
	}
	x0, y0 := sc.Origin[1], sc.Origin[0]
	x1 := x0 + sc.CellSize[1]*float64(sc.Counts[1])
	y1 := y0 + sc.CellSize[0]*float64(sc.Counts[0])

	geoJSON := fmt.Sprintf(`{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]},"properties":{}}`,
		x0, y0, x1, y0, x1, y1, x0, y1, x0, y0)

	var feat geo.Feature
	if err := json.Unmarshal([]byte(geoJSON), &feat); err != nil {
		return nil
	}
	return &feat
}

func (dt *DirectoryTree) Resolve(ctx context.Context, id string) (dataset.Dataset, error) {
	exact := path.Join(dt.root, filepath.FromSlash(id))
	if within(dt.root, exact) {
		if fStat, err := os.Stat(exact); err == nil {
			if fStat.IsDir() {
				sub, err := NewDirectoryTree(exact, dt.treeOptions()...)
				return sub, err
			}
			return dt.open(exact)
		}
	}

	// Fall back to matching by member name.
	members, err := dt.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var matches []*dataset.MemberDescriptor
	for _, m := range members {
		if m.Name == id || m.ID == id {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return nil, &dataset.NotFoundError{Identifier: id}
	case 1:
		return dt.resolveMember(matches[0])
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, &dataset.AmbiguousIdentifierError{Identifier: id, Matches: ids}
	}
}

func (dt *DirectoryTree) ResolveAll(ctx context.Context, filter string) ([]dataset.Dataset, error) {
	members, err := dt.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]dataset.Dataset, 0, len(members))
	for _, m := range members {
		ds, err := dt.resolveMember(m)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

func (dt *DirectoryTree) treeOptions() []TreeOption {
	var opts []TreeOption
	if dt.followSymlinks {
		opts = append(opts, FollowSymlinks())
	}
	if dt.verbose {
		opts = append(opts, Verbose())
	}
	return opts
}

func (dt *DirectoryTree) resolveMember(m *dataset.MemberDescriptor) (dataset.Dataset, error) {
	if m.Kind == dataset.KindCollection {
		return NewDirectoryTree(m.Path, dt.treeOptions()...)
	}
	return dt.open(m.Path)
}

// within guards against identifiers escaping the tree root.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// open instantiates the adapter-backed dataset for one data file.
func (dt *DirectoryTree) open(filePath string) (dataset.Dataset, error) {
	sc, err := loadSidecar(filePath)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(path.Ext(filePath)) {
	case ".nc":
		variable := ""
		if sc != nil {
			variable = sc.Variable
		}
		return ncgrid.Open(filePath, variable)

	case ".sqlite", ".db":
		dsn := filePath + "?mode=ro"
		if sc != nil && sc.Kind == "table" {
			return sqlgrid.OpenTable("sqlite", dsn, sc.Table)
		}
		table := ""
		if sc != nil {
			table = sc.Table
		}
		return sqlgrid.OpenGrid("sqlite", dsn, table)

	case ".bin":
		if sc == nil {
			return nil, &dataset.NotFoundError{Identifier: filePath}
		}
		return loadRawGrid(filePath, sc)
	}

	return nil, fmt.Errorf("no adapter for %s", filePath)
}
