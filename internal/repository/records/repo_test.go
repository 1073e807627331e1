package records

import (
	"context"
	"errors"
	"testing"

	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/domain/record"
	"github.com/vecscope/vecscope/internal/store"
)

type fakeQuerier struct {
	page      *store.RawPage
	hits      *store.RawHits
	metas     []*record.Metadata
	err       error
	knnVector []float32
}

func (f *fakeQuerier) Collections(context.Context) ([]store.CollectionInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []store.CollectionInfo{{Name: "docs", Count: 3}}, nil
}

func (f *fakeQuerier) FetchPage(_ context.Context, _ string, _, _ int, _ filter.Clause) (*store.RawPage, error) {
	return f.page, f.err
}

func (f *fakeQuerier) TextSearch(_ context.Context, _, _ string, _ filter.Clause, _ int) (*store.RawHits, error) {
	return f.hits, f.err
}

func (f *fakeQuerier) KNNSearch(_ context.Context, _ string, vector []float32, _ filter.Clause, _ int) (*store.RawHits, error) {
	f.knnVector = vector
	return f.hits, f.err
}

func (f *fakeQuerier) SampleMetadata(context.Context, string, int) ([]*record.Metadata, error) {
	return f.metas, f.err
}

type fakeEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vector}, nil
}

func strPtr(s string) *string { return &s }

func TestPage_ZipsColumns(t *testing.T) {
	meta := record.NewMetadata()
	meta.Set("type", record.String("article"))

	q := &fakeQuerier{page: &store.RawPage{
		IDs:        []string{"a", "b", "c"},
		Documents:  []*string{strPtr("hello"), nil},
		Metadatas:  []*record.Metadata{meta},
		Embeddings: [][]float32{{0.1, 0.2}},
		Total:      42,
	}}
	repo := New(q, nil)

	page, err := repo.Page(context.Background(), "docs", 0, 10, filter.Clause{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 42 {
		t.Errorf("expected total 42, got %d", page.Total)
	}
	if len(page.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(page.Records))
	}

	if doc, ok := page.Records[0].Document(); !ok || doc != "hello" {
		t.Errorf("record 0: expected document %q, got %q (present=%v)", "hello", doc, ok)
	}
	if _, ok := page.Records[1].Document(); ok {
		t.Error("record 1: expected absent document")
	}
	if _, ok := page.Records[2].Document(); ok {
		t.Error("record 2: short column should read as absent document")
	}
	if page.Records[1].Metadata() != nil {
		t.Error("record 1: expected nil metadata from short column")
	}
	if got := page.Records[0].Vector(); len(got) != 2 {
		t.Errorf("record 0: expected vector of len 2, got %v", got)
	}
}

func TestTextSearch_NoDistances(t *testing.T) {
	q := &fakeQuerier{hits: &store.RawHits{IDs: []string{"a"}}}
	repo := New(q, nil)

	result, err := repo.TextSearch(context.Background(), "docs", "hello", filter.Clause{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Distances != nil {
		t.Errorf("text search must not carry distances, got %v", result.Distances)
	}
}

func TestSemanticSearch_EmbedsAndRanks(t *testing.T) {
	q := &fakeQuerier{hits: &store.RawHits{
		IDs:       []string{"a", "b"},
		Distances: []float64{0.1, 0.4},
	}}
	e := &fakeEmbedder{vector: []float32{1, 2, 3}}
	repo := New(q, e)

	result, err := repo.SemanticSearch(context.Background(), "docs", "query text", filter.Clause{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.texts) != 1 || e.texts[0] != "query text" {
		t.Errorf("expected the query to be embedded, got %v", e.texts)
	}
	if len(q.knnVector) != 3 {
		t.Errorf("expected the embedding to drive the search, got %v", q.knnVector)
	}
	if len(result.Distances) != 2 || result.Distances[0] != 0.1 {
		t.Errorf("unexpected distances: %v", result.Distances)
	}
}

func TestSemanticSearch_DistancesNonNilWhenEmpty(t *testing.T) {
	q := &fakeQuerier{hits: &store.RawHits{}}
	repo := New(q, &fakeEmbedder{vector: []float32{1}})

	result, err := repo.SemanticSearch(context.Background(), "docs", "q", filter.Clause{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Distances == nil {
		t.Error("semantic search must carry non-nil distances even with no hits")
	}
}

func TestSemanticSearch_EmbedderError(t *testing.T) {
	wantErr := errors.New("provider down")
	repo := New(&fakeQuerier{}, &fakeEmbedder{err: wantErr})

	_, err := repo.SemanticSearch(context.Background(), "docs", "q", filter.Clause{}, 10)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped embedder error, got %v", err)
	}
}

func TestSemanticSearch_NoEmbedder(t *testing.T) {
	repo := New(&fakeQuerier{}, nil)

	_, err := repo.SemanticSearch(context.Background(), "docs", "q", filter.Clause{}, 10)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}
