package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/domain/record"
	"github.com/vecscope/vecscope/internal/store"
)

// Collections lists browsable collections by enumerating FT indexes with the
// configured key prefix.
func (s *Store) Collections(ctx context.Context) ([]store.CollectionInfo, error) {
	cmd := s.b().Arbitrary("FT._LIST").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &store.Error{Op: store.OpListCollections, Err: err}
	}

	infos := make([]store.CollectionInfo, 0, len(raw))
	for _, msg := range raw {
		idx, err := msg.ToString()
		if err != nil {
			continue
		}
		if !strings.HasPrefix(idx, s.prefix) || !strings.HasSuffix(idx, ":idx") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(idx, s.prefix), ":idx")
		count, err := s.searchCount(ctx, idx, "*")
		if err != nil {
			return nil, err
		}
		infos = append(infos, store.CollectionInfo{Name: name, Count: count})
	}
	return infos, nil
}

// FetchPage returns one page of records matching the where clause, with the
// filtered total.
func (s *Store) FetchPage(
	ctx context.Context, collection string, offset, limit int, where filter.Clause,
) (*store.RawPage, error) {
	query, err := buildWhere(where)
	if err != nil {
		return nil, &store.Error{Op: store.OpFetchPage, Err: err}
	}
	if query == "" {
		query = "*"
	}

	args := []string{
		s.indexName(collection), query,
		"RETURN", "3", fieldDoc, fieldVector, fieldMeta,
		"LIMIT", strconv.Itoa(offset), strconv.Itoa(limit),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrapSearchErr(store.OpFetchPage, collection, err)
	}

	total, columns, err := parseEntries(raw, s.keyPrefix(collection))
	if err != nil {
		return nil, &store.Error{Op: store.OpFetchPage, Err: err}
	}

	return &store.RawPage{
		IDs:        columns.ids,
		Documents:  columns.docs,
		Metadatas:  columns.metas,
		Embeddings: columns.vectors,
		Total:      total,
	}, nil
}

// TextSearch returns records whose document contains the query text, ordered
// by the engine. No distances exist for text search.
func (s *Store) TextSearch(
	ctx context.Context, collection, query string, where filter.Clause, limit int,
) (*store.RawHits, error) {
	filterStr, err := buildWhere(where)
	if err != nil {
		return nil, &store.Error{Op: store.OpTextSearch, Err: err}
	}

	textPart := fmt.Sprintf("@%s:(%s)", fieldDoc, escapeQuery(query))
	queryStr := textPart
	if filterStr != "" {
		queryStr = filterStr + " " + textPart
	}

	args := []string{
		s.indexName(collection), queryStr,
		"RETURN", "3", fieldDoc, fieldVector, fieldMeta,
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrapSearchErr(store.OpTextSearch, collection, err)
	}

	_, columns, err := parseEntries(raw, s.keyPrefix(collection))
	if err != nil {
		return nil, &store.Error{Op: store.OpTextSearch, Err: err}
	}

	return &store.RawHits{
		IDs:        columns.ids,
		Documents:  columns.docs,
		Metadatas:  columns.metas,
		Embeddings: columns.vectors,
	}, nil
}

// KNNSearch runs a nearest-neighbor search and returns hits with distances.
func (s *Store) KNNSearch(
	ctx context.Context, collection string, vector []float32, where filter.Clause, limit int,
) (*store.RawHits, error) {
	if len(vector) == 0 {
		return nil, &store.Error{Op: store.OpKNNSearch, Err: fmt.Errorf("vector is required")}
	}

	filterStr, err := buildWhere(where)
	if err != nil {
		return nil, &store.Error{Op: store.OpKNNSearch, Err: err}
	}

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", limit, fieldVector)
	queryStr := "*=>" + knnPart
	if filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	}

	args := []string{
		s.indexName(collection), queryStr,
		"RETURN", "4", fieldDoc, fieldVector, fieldMeta, fieldScore,
		"SORTBY", fieldScore,
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrapSearchErr(store.OpKNNSearch, collection, err)
	}

	_, columns, err := parseEntries(raw, s.keyPrefix(collection))
	if err != nil {
		return nil, &store.Error{Op: store.OpKNNSearch, Err: err}
	}

	return &store.RawHits{
		IDs:        columns.ids,
		Documents:  columns.docs,
		Metadatas:  columns.metas,
		Embeddings: columns.vectors,
		Distances:  columns.distances,
	}, nil
}

// SampleMetadata returns the metadata of up to limit records.
func (s *Store) SampleMetadata(
	ctx context.Context, collection string, limit int,
) ([]*record.Metadata, error) {
	args := []string{
		s.indexName(collection), "*",
		"RETURN", "1", fieldMeta,
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrapSearchErr(store.OpSample, collection, err)
	}

	_, columns, err := parseEntries(raw, s.keyPrefix(collection))
	if err != nil {
		return nil, &store.Error{Op: store.OpSample, Err: err}
	}
	return columns.metas, nil
}

// searchCount returns the match count via FT.SEARCH with LIMIT 0 0.
func (s *Store) searchCount(ctx context.Context, index, query string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, query, "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &store.Error{Op: store.OpListCollections, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// wrapSearchErr maps missing-index errors to the domain sentinel.
func wrapSearchErr(op, collection string, err error) error {
	if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index") {
		return &store.Error{Op: op, Err: fmt.Errorf("%s: %w", collection, domain.ErrCollectionNotFound)}
	}
	return &store.Error{Op: op, Err: err}
}

// --- Result parsing ---

// recordColumns accumulates parsed columns from FT.SEARCH entries.
type recordColumns struct {
	ids       []string
	docs      []*string
	metas     []*record.Metadata
	vectors   [][]float32
	distances []float64
}

// parseEntries walks a 2-stride FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func parseEntries(raw []rueidis.RedisMessage, keyPrefix string) (int, *recordColumns, error) {
	cols := &recordColumns{}
	if len(raw) == 0 {
		return 0, cols, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, nil, fmt.Errorf("parse total: %w", err)
	}

	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldMsgs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldMsgs)

		cols.ids = append(cols.ids, strings.TrimPrefix(key, keyPrefix))

		var doc *string
		if d, ok := fields[fieldDoc]; ok {
			doc = &d
		}
		cols.docs = append(cols.docs, doc)

		var meta *record.Metadata
		if rawMeta, ok := fields[fieldMeta]; ok && rawMeta != "" {
			m := &record.Metadata{}
			if err := json.Unmarshal([]byte(rawMeta), m); err == nil {
				meta = m
			}
		}
		cols.metas = append(cols.metas, meta)

		var vec []float32
		if rawVec, ok := fields[fieldVector]; ok {
			vec = bytesToVector(rawVec)
		}
		cols.vectors = append(cols.vectors, vec)

		if scoreStr, ok := fields[fieldScore]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				cols.distances = append(cols.distances, d)
			} else {
				cols.distances = append(cols.distances, 0)
			}
		}
	}

	return int(total), cols, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Vector codec ---

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
