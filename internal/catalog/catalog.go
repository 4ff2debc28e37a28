// Package catalog loads and serves the immutable visa route catalog.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/jonathan/visa-navigator/internal/schemas"
	"github.com/jonathan/visa-navigator/internal/types"
	embedded "github.com/jonathan/visa-navigator/schemas"
)

//go:embed data/routes.json
var defaultRoutes []byte

// Catalog is a read-only set of visa routes indexed by id.
type Catalog struct {
	routes []*types.VisaRoute
	byID   map[string]*types.VisaRoute
}

type document struct {
	Routes []*types.VisaRoute `json:"routes"`
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = Parse(defaultRoutes)
	})
	return defaultCatalog, defaultCatalogErr
}

// Load reads a catalog JSON file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse validates raw catalog JSON against the catalog schema and the
// catalog invariants, then builds the index.
func Parse(data []byte) (*Catalog, error) {
	if err := schemas.ValidateDocument(embedded.VisaCatalog, data); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return New(doc.Routes...)
}

// New builds a catalog from routes after validating them.
func New(routes ...*types.VisaRoute) (*Catalog, error) {
	c := &Catalog{
		routes: make([]*types.VisaRoute, 0, len(routes)),
		byID:   make(map[string]*types.VisaRoute, len(routes)),
	}
	for _, r := range routes {
		if r == nil {
			continue
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, &ValidationError{RouteID: r.ID, Problems: []string{"duplicate route id"}}
		}
		owned := r.Clone()
		c.routes = append(c.routes, owned)
		c.byID[owned.ID] = owned
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a deep copy of the route with the given id.
func (c *Catalog) Get(id string) (*types.VisaRoute, bool) {
	r, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// List returns deep copies of all routes in catalog order.
func (c *Catalog) List() []*types.VisaRoute {
	out := make([]*types.VisaRoute, len(c.routes))
	for i, r := range c.routes {
		out[i] = r.Clone()
	}
	return out
}

// ByCategory returns deep copies of the routes in category c.
func (c *Catalog) ByCategory(category types.Category) []*types.VisaRoute {
	var out []*types.VisaRoute
	for _, r := range c.routes {
		if r.Category == category {
			out = append(out, r.Clone())
		}
	}
	return out
}

// IDs returns the sorted route ids.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of routes.
func (c *Catalog) Len() int {
	return len(c.routes)
}
