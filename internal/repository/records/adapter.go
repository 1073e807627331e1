package records

import "github.com/vecscope/vecscope/internal/domain/record"

// recordsFromColumns zips column-parallel backend output into records. IDs
// drive the result length; the other columns are optional and may be nil,
// shorter than IDs, or contain nil elements, all of which read as absent.
func recordsFromColumns(
	ids []string, docs []*string, metas []*record.Metadata, vectors [][]float32,
) []record.Record {
	out := make([]record.Record, 0, len(ids))
	for i, id := range ids {
		var doc *string
		if i < len(docs) {
			doc = docs[i]
		}
		var meta *record.Metadata
		if i < len(metas) {
			meta = metas[i]
		}
		var vec []float32
		if i < len(vectors) {
			vec = vectors[i]
		}
		out = append(out, record.New(id, doc, meta, vec))
	}
	return out
}
