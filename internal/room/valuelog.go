package room

// ValueLog is the ordered in-memory history of one stream: unbounded, and
// keyed by seq rather than eviction order, since it is the durable state
// of a stream rather than a best-effort replay window.
type ValueLog struct {
	entries []SequenceValue
}

// PushBack appends an entry to the end of the log.
func (l *ValueLog) PushBack(sv SequenceValue) {
	l.entries = append(l.entries, sv)
}

// PushFront inserts an entry at the head of the log. Used only by Compact,
// which establishes a new baseline at the compaction boundary.
func (l *ValueLog) PushFront(sv SequenceValue) {
	l.entries = append(l.entries, SequenceValue{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = sv
}

// Clear empties the log.
func (l *ValueLog) Clear() {
	l.entries = l.entries[:0]
}

// RetainAfter keeps only entries with Seq > boundary, preserving order.
// Used by Compact's DeleteUpTo instruction.
func (l *ValueLog) RetainAfter(boundary SequenceNumber) {
	kept := l.entries[:0]
	for _, sv := range l.entries {
		if sv.Seq > boundary {
			kept = append(kept, sv)
		}
	}
	l.entries = kept
}

// Len returns the number of retained entries.
func (l *ValueLog) Len() int {
	return len(l.entries)
}

// Since returns a copy of every entry with Seq > since, in order. An empty
// or missing log and "no entries past since" are indistinguishable to the
// caller, both yielding an empty (non-nil) slice.
func (l *ValueLog) Since(since SequenceNumber) []SequenceValue {
	out := make([]SequenceValue, 0, len(l.entries))
	for _, sv := range l.entries {
		if sv.Seq > since {
			out = append(out, sv)
		}
	}
	return out
}

// All returns a copy of the full log, in order.
func (l *ValueLog) All() []SequenceValue {
	return l.Since(0)
}
