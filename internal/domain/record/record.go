package record

// Record is a single vector record within a collection. Document and
// embedding columns are optional in raw store responses; an absent document
// is distinguishable from an empty one.
type Record struct {
	id       string
	document string
	hasDoc   bool
	metadata *Metadata
	vector   []float32
}

// New creates a record. A nil document pointer marks the document as absent.
func New(id string, document *string, metadata *Metadata, vector []float32) Record {
	r := Record{id: id, metadata: metadata, vector: vector}
	if document != nil {
		r.document = *document
		r.hasDoc = true
	}
	return r
}

// ID returns the record identifier, unique within its collection.
func (r Record) ID() string { return r.id }

// Document returns the document text and whether one is present.
func (r Record) Document() (string, bool) { return r.document, r.hasDoc }

// Metadata returns the ordered metadata map, possibly nil.
func (r Record) Metadata() *Metadata { return r.metadata }

// Vector returns the embedding vector, possibly nil.
func (r Record) Vector() []float32 { return r.vector }
