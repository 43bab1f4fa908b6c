package collection

import (
	"fmt"
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/nci/gridset/dataset"
)

// Sidecar is the yaml descriptor that accompanies a data file and supplies
// the metadata the raw format does not carry: data type, NoData, extent
// and spatial reference, plus backend-specific addressing such as the
// NetCDF variable or SQL table name.
type Sidecar struct {
	Name           string   `yaml:"name"`
	Kind           string   `yaml:"kind"`
	Type           string   `yaml:"type"`
	NoData         float64  `yaml:"no_data"`
	UnscaledNoData *float64 `yaml:"unscaled_no_data"`
	Dimensions     string   `yaml:"dimensions"`
	Origin         []float64 `yaml:"origin"`
	CellSize       []float64 `yaml:"cell_size"`
	Counts         []int     `yaml:"counts"`

	SRS struct {
		WKT           string  `yaml:"wkt"`
		Authority     string  `yaml:"authority"`
		LinearUnit    string  `yaml:"linear_unit"`
		MetersPerUnit float64 `yaml:"meters_per_unit"`
	} `yaml:"srs"`

	// Variable addresses the variable inside a NetCDF file.
	Variable string `yaml:"variable"`
	// Table addresses the grid-block or tabular table inside a database.
	Table string `yaml:"table"`

	// Attributes are surfaced as queryable attributes on the member.
	Attributes map[string]interface{} `yaml:"attributes"`
}

// loadSidecar reads <dataPath>.yaml when present. Absence is not an error.
func loadSidecar(dataPath string) (*Sidecar, error) {
	sidecarPath := dataPath + ".yaml"
	body, err := ioutil.ReadFile(sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sc Sidecar
	if err := yaml.Unmarshal(body, &sc); err != nil {
		return nil, fmt.Errorf("parsing sidecar %s: %w", sidecarPath, err)
	}
	return &sc, nil
}

// Extent builds the dataset extent the sidecar describes.
func (sc *Sidecar) Extent() (dataset.Extent, error) {
	return dataset.NewExtent(sc.Dimensions, sc.Origin, sc.CellSize, sc.Counts)
}

// SpatialReference builds the spatial reference the sidecar describes.
func (sc *Sidecar) SpatialReference() dataset.SpatialReference {
	return dataset.SpatialReference{
		WKT:           sc.SRS.WKT,
		Authority:     sc.SRS.Authority,
		LinearUnit:    sc.SRS.LinearUnit,
		MetersPerUnit: sc.SRS.MetersPerUnit,
	}
}

// Dtype parses the sidecar's type string.
func (sc *Sidecar) Dtype() (dataset.Dtype, error) {
	return dataset.ParseDtype(sc.Type)
}
