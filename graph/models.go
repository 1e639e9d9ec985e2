package graph

import (
	"time"
)

// Graph is the complete visualization payload in the shape D3 force layouts
// consume: flat node and link arrays plus metadata for legends.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
	Meta  Meta   `json:"meta"`
}

// Node is one clock identity of the sync graph.
type Node struct {
	ID       string                 `json:"id"`              // "device:epoch:clock"
	Type     string                 `json:"type"`            // clock type label
	Label    string                 `json:"label"`           // Display label
	Visible  bool                   `json:"visible"`         // Backend controls visibility
	Group    int                    `json:"group,omitempty"` // Device cluster for coloring
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Link is one stored mapping between two clock identities. Each undirected
// clock pair appears once; the inverse direction is implied.
type Link struct {
	Source string  `json:"source"` // Node ID
	Target string  `json:"target"` // Node ID
	Type   string  `json:"type"`   // Rule that discovered the mapping
	Weight float64 `json:"value"`  // Link strength/weight (D3 uses "value")
	Label  string  `json:"label,omitempty"`
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
}

// Meta contains metadata about the graph
type Meta struct {
	GeneratedAt       time.Time              `json:"generated_at"`
	Stats             Stats                  `json:"stats"`
	Config            map[string]string      `json:"config"`
	NodeTypes         []NodeTypeInfo         `json:"node_types"`         // Clock types present in this graph
	RelationshipTypes []RelationshipTypeInfo `json:"relationship_types"` // Discovery rules present in this graph
}

// NodeTypeInfo describes a clock type and its visual configuration.
type NodeTypeInfo struct {
	Type  string `json:"type"`            // e.g., "utc", "dev_local_time"
	Label string `json:"label"`           // Human-readable display name
	Color string `json:"color,omitempty"` // Hex or rgba() color
	Count int    `json:"count,omitempty"` // Number of nodes of this type
}

// RelationshipTypeInfo describes a discovery rule whose mappings appear as
// links.
type RelationshipTypeInfo struct {
	Type  string `json:"type"`            // Rule name (e.g., "filematch")
	Label string `json:"label"`           // Human-readable display name
	Count int    `json:"count,omitempty"` // Number of links from this rule
}

// Stats provides graph statistics
type Stats struct {
	TotalNodes int `json:"total_nodes,omitempty"`
	TotalEdges int `json:"total_edges,omitempty"`
}
