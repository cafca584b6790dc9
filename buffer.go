package metrics

// BufferEntry pairs a source's name with the records it produced in one
// sampling pass (spec.md §3, §6: "Buffer = [ Entry ]; Entry =
// (sourceName: string, records: [Record])").
type BufferEntry struct {
	SourceName string
	Records    []Record
}

// Buffer is the immutable unit of delivery to sinks: every source's
// records from one sampling pass, in the order sources were sampled.
type Buffer struct {
	LogicalTime int64
	Entries     []BufferEntry
}

// BufferBuilder accumulates BufferEntry values during one sampling pass
// (spec.md §4.7 sampleMetrics).
type BufferBuilder struct {
	logicalTime int64
	entries     []BufferEntry
}

// NewBufferBuilder starts a buffer for the given logical tick time.
func NewBufferBuilder(logicalTime int64) *BufferBuilder {
	return &BufferBuilder{logicalTime: logicalTime}
}

// Append adds one source's records to the buffer under construction.
func (bb *BufferBuilder) Append(sourceName string, records []Record) {
	bb.entries = append(bb.entries, BufferEntry{SourceName: sourceName, Records: records})
}

// Build finalizes the buffer.
func (bb *BufferBuilder) Build() Buffer {
	return Buffer{LogicalTime: bb.logicalTime, Entries: append([]BufferEntry(nil), bb.entries...)}
}
