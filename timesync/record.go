package timesync

// EdgeRecord is the serialized form of one directed graph edge. Records are
// plain JSON so they can be persisted as documents and reloaded into a fresh
// graph with LoadRecords.
type EdgeRecord struct {
	Source       EpochClockID `json:"source"`
	Target       EpochClockID `json:"target"`
	Kind         string       `json:"kind"`
	Scale        float64      `json:"scale"`
	Offset       float64      `json:"offset"`
	DiscoveredBy string       `json:"discovered_by"`
}

// NewEdgeRecord captures a mapping and the rule that produced it.
func NewEdgeRecord(m TimeMapping, discoveredBy string) EdgeRecord {
	return EdgeRecord{
		Source:       m.Source,
		Target:       m.Target,
		Kind:         m.Kind,
		Scale:        m.Scale,
		Offset:       m.Offset,
		DiscoveredBy: discoveredBy,
	}
}

// Mapping reconstructs the validated mapping the record describes.
func (r EdgeRecord) Mapping() (TimeMapping, error) {
	m := TimeMapping{
		Source: r.Source,
		Target: r.Target,
		Kind:   r.Kind,
		Scale:  r.Scale,
		Offset: r.Offset,
	}
	if err := m.Validate(); err != nil {
		return TimeMapping{}, err
	}
	return m, nil
}
