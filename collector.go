package metrics

import "time"

// Collector is the transient staging area that assembles RecordBuilders
// during one source's sampling pass (spec.md §3, §4.3). It is cleared
// between sources within a pass so each source's records stay isolated.
type Collector struct {
	builders     []*RecordBuilder
	recordFilter *Filter
	metricFilter *Filter
}

// NewCollector builds a Collector with optional record/metric filters.
// Either may be nil, meaning "accept everything".
func NewCollector(recordFilter, metricFilter *Filter) *Collector {
	return &Collector{recordFilter: recordFilter, metricFilter: metricFilter}
}

// AddRecord starts a new record named by info. If the collector's
// recordFilter rejects info.Name, a no-op builder is returned instead:
// its methods accept calls but retain nothing, so source code need not
// branch on filter state (spec.md §4.3).
func (c *Collector) AddRecord(info *MetricInfo) *RecordBuilder {
	if c.recordFilter != nil && !c.recordFilter.Accepts(info.Name) {
		return &RecordBuilder{collector: c, rejected: true}
	}
	b := &RecordBuilder{collector: c, info: info, metricFilter: c.metricFilter}
	c.builders = append(c.builders, b)
	return b
}

// AddRecordByName is a convenience that synthesizes
// info(name, name+" record") (spec.md §4.3).
func (c *Collector) AddRecordByName(name string) *RecordBuilder {
	return c.AddRecord(Info(name, name+" record"))
}

// GetRecords finalizes every accepted, non-rejected builder into a
// Record, applying the recordFilter a second time against the
// assembled tags (spec.md §4.3: "A builder's record is also filtered by
// recordFilter.accepts(tags); if rejected, the record is omitted").
func (c *Collector) GetRecords() []Record {
	now := time.Now()
	records := make([]Record, 0, len(c.builders))
	for _, b := range c.builders {
		if b.rejected {
			continue
		}
		if c.recordFilter != nil && !c.recordFilter.AcceptsTags(b.tags) {
			continue
		}
		records = append(records, b.build(now))
	}
	return records
}

// Clear discards all builders accumulated so far, readying the
// collector for the next source in the pass.
func (c *Collector) Clear() {
	c.builders = c.builders[:0]
}
