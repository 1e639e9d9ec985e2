package session

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/ndx-io/NDX/document"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
	"github.com/ndx-io/NDX/timesync"
)

// Sync graph state is persisted as ordinary documents so it travels with
// the rest of the session database.
const (
	TypeSyncEdge = "sync/edge"
	TypeSyncRule = "sync/rule"
)

// ruleIndexKey orders persisted rules. Discovery is first-match-wins, so a
// reloaded session must evaluate rules in their original order.
const ruleIndexKey = "index"

// SaveSyncGraph replaces the session's persisted sync state with the
// graph's current rules and edges.
func (s *Session) SaveSyncGraph(ctx context.Context) error {
	if err := s.clearSyncDocs(ctx); err != nil {
		return err
	}

	rules := s.graph.Rules()
	for i, rule := range rules {
		props, err := structProperties(rule.Spec())
		if err != nil {
			return errors.Wrapf(err, "encode rule %s", rule.Name())
		}
		props[ruleIndexKey] = i
		doc := document.New(s.id, TypeSyncRule)
		doc.Properties = props
		if err := s.store.Add(ctx, doc); err != nil {
			return err
		}
	}

	records := s.graph.Records()
	for _, rec := range records {
		props, err := structProperties(rec)
		if err != nil {
			return errors.Wrapf(err, "encode edge %s -> %s", rec.Source, rec.Target)
		}
		doc := document.New(s.id, TypeSyncEdge)
		doc.Properties = props
		if err := s.store.Add(ctx, doc); err != nil {
			return err
		}
	}

	s.logger.Infow("Sync graph saved",
		"symbol", sym.Session,
		"session_id", s.id,
		"rules", len(rules),
		"edges", len(records),
	)
	return nil
}

// LoadSyncGraph rebuilds rules and edges from the session's persisted sync
// documents. Rule documents of kinds the registry does not know abort the
// load. Loading into a graph that already holds the same edges is a no-op.
func (s *Session) LoadSyncGraph(ctx context.Context) error {
	ruleDocs, err := s.store.Search(ctx, s.id, document.NewQuery().IsA(TypeSyncRule))
	if err != nil {
		return err
	}
	sort.SliceStable(ruleDocs, func(i, j int) bool {
		return ruleIndex(ruleDocs[i]) < ruleIndex(ruleDocs[j])
	})
	for _, doc := range ruleDocs {
		var spec timesync.RuleSpec
		if err := propertiesInto(doc.Properties, &spec); err != nil {
			return errors.Wrapf(err, "decode rule document %s", doc.ID)
		}
		rule, err := s.rules.Build(spec)
		if err != nil {
			return errors.Wrapf(err, "rule document %s", doc.ID)
		}
		s.graph.AddRule(rule)
	}

	edgeDocs, err := s.store.Search(ctx, s.id, document.NewQuery().IsA(TypeSyncEdge))
	if err != nil {
		return err
	}
	records := make([]timesync.EdgeRecord, 0, len(edgeDocs))
	for _, doc := range edgeDocs {
		var rec timesync.EdgeRecord
		if err := propertiesInto(doc.Properties, &rec); err != nil {
			return errors.Wrapf(err, "decode edge document %s", doc.ID)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		si, sj := records[i].Source.String(), records[j].Source.String()
		if si != sj {
			return si < sj
		}
		return records[i].Target.String() < records[j].Target.String()
	})
	if err := s.graph.LoadRecords(records); err != nil {
		return err
	}

	s.logger.Infow("Sync graph loaded",
		"symbol", sym.Session,
		"session_id", s.id,
		"rules", len(ruleDocs),
		"edges", len(records),
	)
	return nil
}

func (s *Session) clearSyncDocs(ctx context.Context) error {
	docs, err := s.store.Search(ctx, s.id, document.NewQuery().IsA("sync"))
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, err := s.store.Remove(ctx, doc.ID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// structProperties flattens a JSON-taggable value into a properties map.
func structProperties(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// propertiesInto decodes a properties map back into a JSON-taggable value.
func propertiesInto(props map[string]any, v any) error {
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func ruleIndex(doc *document.Document) float64 {
	if v, ok := doc.Properties[ruleIndexKey].(float64); ok {
		return v
	}
	// Properties set in memory carry the int; JSON round trips make it a
	// float64.
	if v, ok := doc.Properties[ruleIndexKey].(int); ok {
		return float64(v)
	}
	return 0
}
