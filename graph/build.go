package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/ndx-io/NDX/timesync"
)

// Build converts a sync graph snapshot into the visualization structure.
// Nodes are clock identities grouped by device; links are stored mappings,
// one per clock pair, labelled with their parameters and discovering rule.
// Output order is deterministic for a given graph so consecutive snapshots
// can be diffed.
func (b *Builder) Build(src *timesync.Graph, sessionRef string) *Graph {
	out := &Graph{
		Nodes: []Node{},
		Links: []Link{},
		Meta: Meta{
			GeneratedAt: time.Now(),
			Stats:       Stats{},
			Config: map[string]string{
				"session":     sessionRef,
				"description": fmt.Sprintf("Clock sync graph for session %s", sessionRef),
			},
		},
	}

	ids := src.Nodes()
	groups := deviceGroups(ids)
	for _, id := range ids {
		out.Nodes = append(out.Nodes, Node{
			ID:      id.String(),
			Type:    string(id.Clock),
			Label:   id.String(),
			Visible: true,
			Group:   groups[id.Device],
			Metadata: map[string]interface{}{
				"device":      id.Device,
				"epoch":       id.Epoch,
				"clock":       string(id.Clock),
				"global":      id.Clock.Global(),
				"approximate": id.Clock.Approximate(),
			},
		})
	}

	// The graph stores both directions of every mapping. Keep one link per
	// pair; record order makes that the direction whose source sorts first.
	type pairKey struct{ a, b string }
	seen := make(map[pairKey]bool)
	for _, rec := range src.Records() {
		source, target := rec.Source.String(), rec.Target.String()
		key := pairKey{source, target}
		if target < source {
			key = pairKey{target, source}
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		weight := defaultLinkWeight
		if m, err := rec.Mapping(); err == nil && m.Identity() {
			weight = identityLinkWeight
		}
		out.Links = append(out.Links, Link{
			Source: source,
			Target: target,
			Type:   rec.DiscoveredBy,
			Weight: weight,
			Label:  fmt.Sprintf("scale=%g offset=%g (%s)", rec.Scale, rec.Offset, rec.DiscoveredBy),
			Scale:  rec.Scale,
			Offset: rec.Offset,
		})
	}

	out.Meta.Stats.TotalNodes = len(out.Nodes)
	out.Meta.Stats.TotalEdges = len(out.Links)
	out.Meta.NodeTypes = collectNodeTypeInfo(out.Nodes)
	out.Meta.RelationshipTypes = collectRelationshipTypeInfo(out.Links)

	b.logger.Debugw("Built graph model",
		"session", sessionRef,
		"nodes", len(out.Nodes),
		"links", len(out.Links),
	)
	return out
}

// deviceGroups assigns a stable 1-based cluster number per device, ordered
// by device name.
func deviceGroups(ids []timesync.EpochClockID) map[string]int {
	devices := make([]string, 0, len(ids))
	seen := make(map[string]bool)
	for _, id := range ids {
		if !seen[id.Device] {
			seen[id.Device] = true
			devices = append(devices, id.Device)
		}
	}
	sort.Strings(devices)

	groups := make(map[string]int, len(devices))
	for i, device := range devices {
		groups[device] = i + 1
	}
	return groups
}

// collectNodeTypeInfo collects legend information about clock types present
// in the graph, most common first.
func collectNodeTypeInfo(nodes []Node) []NodeTypeInfo {
	typeCounts := make(map[string]int)
	for _, node := range nodes {
		typeCounts[node.Type]++
	}

	var nodeTypes []NodeTypeInfo
	for clockType, count := range typeCounts {
		color, ok := clockColors[clockType]
		if !ok {
			color = defaultClockColor
		}
		label, ok := clockLabels[clockType]
		if !ok {
			label = clockType
		}
		nodeTypes = append(nodeTypes, NodeTypeInfo{
			Type:  clockType,
			Label: label,
			Color: color,
			Count: count,
		})
	}

	sort.Slice(nodeTypes, func(i, j int) bool {
		if nodeTypes[i].Count != nodeTypes[j].Count {
			return nodeTypes[i].Count > nodeTypes[j].Count
		}
		return nodeTypes[i].Type < nodeTypes[j].Type
	})
	return nodeTypes
}

// collectRelationshipTypeInfo collects legend information about the rules
// whose mappings appear as links, most common first.
func collectRelationshipTypeInfo(links []Link) []RelationshipTypeInfo {
	typeCounts := make(map[string]int)
	for _, link := range links {
		typeCounts[link.Type]++
	}

	var relationshipTypes []RelationshipTypeInfo
	for linkType, count := range typeCounts {
		relationshipTypes = append(relationshipTypes, RelationshipTypeInfo{
			Type:  linkType,
			Label: linkType,
			Count: count,
		})
	}

	sort.Slice(relationshipTypes, func(i, j int) bool {
		if relationshipTypes[i].Count != relationshipTypes[j].Count {
			return relationshipTypes[i].Count > relationshipTypes[j].Count
		}
		return relationshipTypes[i].Type < relationshipTypes[j].Type
	})
	return relationshipTypes
}
