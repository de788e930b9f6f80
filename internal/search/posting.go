package search

// Posting is one (field, term) -> doc_id occurrence record. Positions are
// stored as a little-endian u32 array on disk; Frequency is len(Positions)
// for fields that track positions, or a standalone count otherwise.
type Posting struct {
	DocID     string
	Frequency int
	Positions []uint32
}

// ToDict/FromDict round-trip the posting through a plain map, matching the
// invariant in spec §8 (Posting.to_dict -> from_dict yields equal objects).
func (p Posting) ToDict() map[string]any {
	positions := make([]any, len(p.Positions))
	for i, pos := range p.Positions {
		positions[i] = pos
	}
	return map[string]any{
		"doc_id":    p.DocID,
		"frequency": p.Frequency,
		"positions": positions,
	}
}

// PostingFromDict reconstructs a Posting from the map produced by ToDict.
func PostingFromDict(data map[string]any) Posting {
	p := Posting{}
	if v, ok := data["doc_id"].(string); ok {
		p.DocID = v
	}
	if v, ok := data["frequency"].(int); ok {
		p.Frequency = v
	}
	if v, ok := data["positions"].([]any); ok {
		p.Positions = make([]uint32, 0, len(v))
		for _, raw := range v {
			switch n := raw.(type) {
			case uint32:
				p.Positions = append(p.Positions, n)
			case int:
				p.Positions = append(p.Positions, uint32(n))
			case float64:
				p.Positions = append(p.Positions, uint32(n))
			}
		}
	}
	if p.Frequency == 0 {
		p.Frequency = len(p.Positions)
	}
	return p
}

// EncodePositions packs a u32 position array as a little-endian byte blob,
// the on-disk representation used by the segment store.
func EncodePositions(positions []uint32) []byte {
	buf := make([]byte, len(positions)*4)
	for i, p := range positions {
		buf[i*4+0] = byte(p)
		buf[i*4+1] = byte(p >> 8)
		buf[i*4+2] = byte(p >> 16)
		buf[i*4+3] = byte(p >> 24)
	}
	return buf
}

// DecodePositions unpacks a little-endian u32 byte blob back into positions.
func DecodePositions(blob []byte) []uint32 {
	n := len(blob) / 4
	positions := make([]uint32, n)
	for i := 0; i < n; i++ {
		positions[i] = uint32(blob[i*4]) | uint32(blob[i*4+1])<<8 | uint32(blob[i*4+2])<<16 | uint32(blob[i*4+3])<<24
	}
	return positions
}
