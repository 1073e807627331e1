package qdrant

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/domain/record"
	"github.com/vecscope/vecscope/internal/store"
)

// Collections lists all collections with their point counts.
func (s *Store) Collections(ctx context.Context) ([]store.CollectionInfo, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, &store.Error{Op: store.OpListCollections, Err: err}
	}

	infos := make([]store.CollectionInfo, 0, len(names))
	for _, name := range names {
		count, err := s.count(ctx, name, nil)
		if err != nil {
			return nil, &store.Error{Op: store.OpListCollections, Err: err}
		}
		infos = append(infos, store.CollectionInfo{Name: name, Count: count})
	}
	return infos, nil
}

// FetchPage returns one page of records matching the where clause, with the
// filtered total. Without a query vector the Query API scrolls points in
// stable ID order, which gives deterministic paging.
func (s *Store) FetchPage(
	ctx context.Context, collection string, offset, limit int, where filter.Clause,
) (*store.RawPage, error) {
	qf, err := buildFilter(where)
	if err != nil {
		return nil, &store.Error{Op: store.OpFetchPage, Err: err}
	}

	total, err := s.count(ctx, collection, qf)
	if err != nil {
		return nil, wrapQueryErr(store.OpFetchPage, collection, err)
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Filter:         qf,
		Limit:          qdrant.PtrOf(uint64(limit)),
		Offset:         qdrant.PtrOf(uint64(offset)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, wrapQueryErr(store.OpFetchPage, collection, err)
	}

	cols := collectColumns(points, false)
	return &store.RawPage{
		IDs:        cols.ids,
		Documents:  cols.docs,
		Metadatas:  cols.metas,
		Embeddings: cols.vectors,
		Total:      total,
	}, nil
}

// TextSearch returns records whose document matches the query text via a
// full-text payload condition. No distances exist for text search.
func (s *Store) TextSearch(
	ctx context.Context, collection, query string, where filter.Clause, limit int,
) (*store.RawHits, error) {
	qf, err := buildFilter(where)
	if err != nil {
		return nil, &store.Error{Op: store.OpTextSearch, Err: err}
	}
	if qf == nil {
		qf = &qdrant.Filter{}
	}
	qf.Must = append(qf.Must, fieldCondition(&qdrant.FieldCondition{
		Key:   payloadDoc,
		Match: &qdrant.Match{MatchValue: &qdrant.Match_Text{Text: query}},
	}))

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Filter:         qf,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, wrapQueryErr(store.OpTextSearch, collection, err)
	}

	cols := collectColumns(points, false)
	return &store.RawHits{
		IDs:        cols.ids,
		Documents:  cols.docs,
		Metadatas:  cols.metas,
		Embeddings: cols.vectors,
	}, nil
}

// KNNSearch runs a nearest-neighbor search and returns hits with distances.
// Qdrant reports similarity scores; they are converted to distances as
// 1 - score so that smaller means closer, matching the other backends.
func (s *Store) KNNSearch(
	ctx context.Context, collection string, vector []float32, where filter.Clause, limit int,
) (*store.RawHits, error) {
	if len(vector) == 0 {
		return nil, &store.Error{Op: store.OpKNNSearch, Err: fmt.Errorf("vector is required")}
	}

	qf, err := buildFilter(where)
	if err != nil {
		return nil, &store.Error{Op: store.OpKNNSearch, Err: err}
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qf,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, wrapQueryErr(store.OpKNNSearch, collection, err)
	}

	cols := collectColumns(points, true)
	return &store.RawHits{
		IDs:        cols.ids,
		Documents:  cols.docs,
		Metadatas:  cols.metas,
		Embeddings: cols.vectors,
		Distances:  cols.distances,
	}, nil
}

// SampleMetadata returns the metadata of up to limit records.
func (s *Store) SampleMetadata(
	ctx context.Context, collection string, limit int,
) ([]*record.Metadata, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, wrapQueryErr(store.OpSample, collection, err)
	}

	metas := make([]*record.Metadata, 0, len(points))
	for _, point := range points {
		metas = append(metas, payloadMetadata(point.Payload))
	}
	return metas, nil
}

// count returns the exact number of points matching the filter.
func (s *Store) count(ctx context.Context, collection string, qf *qdrant.Filter) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         qf,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// wrapQueryErr maps missing-collection errors to the domain sentinel.
func wrapQueryErr(op, collection string, err error) error {
	if st, ok := status.FromError(err); ok {
		if st.Code() == codes.NotFound || strings.Contains(st.Message(), "doesn't exist") {
			return &store.Error{Op: op, Err: fmt.Errorf("%s: %w", collection, domain.ErrCollectionNotFound)}
		}
	}
	return &store.Error{Op: op, Err: err}
}

// --- Result collection ---

type pointColumns struct {
	ids       []string
	docs      []*string
	metas     []*record.Metadata
	vectors   [][]float32
	distances []float64
}

// collectColumns converts scored points into column-parallel form. Distances
// are collected only when scored is set.
func collectColumns(points []*qdrant.ScoredPoint, scored bool) *pointColumns {
	cols := &pointColumns{}
	for _, point := range points {
		cols.ids = append(cols.ids, pointID(point.Id))

		var doc *string
		if v, ok := point.Payload[payloadDoc]; ok {
			if _, isStr := v.GetKind().(*qdrant.Value_StringValue); isStr {
				s := v.GetStringValue()
				doc = &s
			}
		}
		cols.docs = append(cols.docs, doc)

		cols.metas = append(cols.metas, payloadMetadata(point.Payload))

		var vec []float32
		if point.Vectors != nil {
			if v := point.Vectors.GetVector(); v != nil {
				vec = v.Data
			}
		}
		cols.vectors = append(cols.vectors, vec)

		if scored {
			cols.distances = append(cols.distances, 1-float64(point.Score))
		}
	}
	return cols
}

// pointID renders a point ID as a string, matching how IDs were written.
func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}
