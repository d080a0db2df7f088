// Package catalog holds the static, versioned list of node types consumed
// read-only by the graph validator and the API.
package catalog

// NodeType describes one entry of the node-type catalog.
type NodeType struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Category     string         `json:"category"`
	ConfigSchema map[string]any `json:"config_schema,omitempty"`
}

// Node categories.
const (
	CategoryFlow      = "flow"
	CategoryAction    = "action"
	CategoryControl   = "control"
	CategoryModel     = "model"
	CategoryRetrieval = "retrieval"
)

// Catalog is a versioned, immutable set of node types.
type Catalog struct {
	version string
	types   map[string]NodeType
	order   []string
}

// New builds a catalog from the given node types.
func New(version string, types ...NodeType) *Catalog {
	catalog := &Catalog{
		version: version,
		types:   make(map[string]NodeType, len(types)),
		order:   make([]string, 0, len(types)),
	}

	for _, nodeType := range types {
		catalog.types[nodeType.ID] = nodeType
		catalog.order = append(catalog.order, nodeType.ID)
	}

	return catalog
}

// Version returns the catalog version string.
func (c *Catalog) Version() string {
	return c.version
}

// Get returns the node type with the given id.
func (c *Catalog) Get(id string) (NodeType, bool) {
	nodeType, ok := c.types[id]

	return nodeType, ok
}

// Types returns all node types in registration order.
func (c *Catalog) Types() []NodeType {
	types := make([]NodeType, 0, len(c.order))
	for _, id := range c.order {
		types = append(types, c.types[id])
	}

	return types
}

// IsStart reports whether the type id is a run entry point.
func (c *Catalog) IsStart(id string) bool {
	return id == "start" || id == "trigger"
}

// IsEnd reports whether the type id is a run exit point.
func (c *Catalog) IsEnd(id string) bool {
	return id == "end"
}
