// Package derive builds grids whose values are computed on demand by
// applying a function over one or more input grids, cell by cell, without
// materializing intermediate data.
package derive

import (
	"fmt"
	"sync"

	"github.com/nci/gridset/dataset"
)

// Function is a first-class derivation: a referenceable unit of behavior
// with declared arity and output type, rather than a parsed textual
// expression. HandlesNoData declares that the function deals with NoData
// cells itself; otherwise the engine propagates NoData before the function
// ever sees the window.
type Function struct {
	Name string

	// Version participates in the function's cache identity. Bump it when
	// the function's behavior changes so stale cached results are not
	// reused across runs.
	Version string

	Arity  int
	Output dataset.Dtype

	// OutputNoData is the NoData sentinel of grids produced by this
	// function.
	OutputNoData float64

	HandlesNoData bool

	Apply func(args []float64) float64
}

// Identity is the function's contribution to cache keys.
func (f Function) Identity() string {
	if len(f.Version) > 0 {
		return f.Name + "@" + f.Version
	}
	return f.Name
}

func (f Function) validate() error {
	if len(f.Name) == 0 {
		return fmt.Errorf("function has no name")
	}
	if f.Arity <= 0 {
		return fmt.Errorf("function %s has non-positive arity %d", f.Name, f.Arity)
	}
	if !f.Output.Valid() {
		return fmt.Errorf("function %s has unrecognised output type %q", f.Name, f.Output)
	}
	if f.Apply == nil {
		return fmt.Errorf("function %s has no Apply", f.Name)
	}
	return nil
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Function{}
)

// Register adds fn to the package registry so external layers can address
// it by name. Registering the same name twice is an error.
func Register(fn Function) error {
	if err := fn.validate(); err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, found := registry[fn.Name]; found {
		return fmt.Errorf("function %s is already registered", fn.Name)
	}
	registry[fn.Name] = fn
	return nil
}

// Lookup returns the registered function with the given name.
func Lookup(name string) (Function, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, found := registry[name]
	return fn, found
}
