package search

// FieldLengthStats summarizes one field's document-length distribution,
// precomputed once per segment load rather than per query.
type FieldLengthStats struct {
	AverageLength float64
	DocCount      int
}

// ComputeFieldLengthStats derives average length per field from the raw
// field -> doc_id -> length map stored in the segment.
func ComputeFieldLengthStats(fieldLengths map[string]map[string]int) map[string]FieldLengthStats {
	out := make(map[string]FieldLengthStats, len(fieldLengths))
	for field, lengths := range fieldLengths {
		if len(lengths) == 0 {
			out[field] = FieldLengthStats{}
			continue
		}
		total := 0
		for _, l := range lengths {
			total += l
		}
		out[field] = FieldLengthStats{
			AverageLength: float64(total) / float64(len(lengths)),
			DocCount:      len(lengths),
		}
	}
	return out
}
