// Package catalog discovers the metadata schema of a collection by sampling
// records and inferring field names, type tags, and example values.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/vecscope/vecscope/internal/domain/record"
)

const (
	// SampleLimit is how many records are sampled per refresh.
	SampleLimit = 100
	// maxSampleValues caps the distinct example values kept per field.
	maxSampleValues = 5
	// absentTag marks a key missing from part of the sample.
	absentTag = "absent"
)

// Field is one discovered metadata field. Type is the stable join of every
// primitive type tag observed for the field across the sample, in
// first-occurrence order.
type Field struct {
	name    string
	typ     string
	samples []record.Value
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Type returns the joined type label, e.g. "string | number".
func (f Field) Type() string { return f.typ }

// SampleValues returns up to five distinct observed values.
func (f Field) SampleValues() []record.Value { return f.samples }

// Sampler fetches metadata samples from the record store.
type Sampler interface {
	SampleMetadata(ctx context.Context, collection string, limit int) ([]*record.Metadata, error)
}

// Catalog infers metadata fields for collections. Concurrent refreshes of the
// same collection are collapsed into a single store call.
type Catalog struct {
	sampler Sampler
	group   singleflight.Group
}

// New creates a catalog over the given sampler.
func New(sampler Sampler) *Catalog {
	return &Catalog{sampler: sampler}
}

// Refresh samples the collection and rebuilds its field list.
func (c *Catalog) Refresh(ctx context.Context, collection string) ([]Field, error) {
	v, err, _ := c.group.Do(collection, func() (any, error) {
		samples, err := c.sampler.SampleMetadata(ctx, collection, SampleLimit)
		if err != nil {
			return nil, fmt.Errorf("sample metadata %s: %w", collection, err)
		}
		return BuildFields(samples), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Field), nil
}

// fieldAccum gathers per-key observations during a scan.
type fieldAccum struct {
	tags    []string
	seen    map[string]struct{}
	samples []record.Value
	count   int
}

func (a *fieldAccum) observe(v record.Value) {
	a.count++
	tag := string(v.Kind())
	if _, ok := a.seen[tag]; !ok {
		a.seen[tag] = struct{}{}
		a.tags = append(a.tags, tag)
	}
	if len(a.samples) >= maxSampleValues {
		return
	}
	for _, s := range a.samples {
		if s.Equal(v) {
			return
		}
	}
	a.samples = append(a.samples, v)
}

// BuildFields infers the field list from metadata samples. Keys absent from
// part of the sample get a trailing "absent" tag. Output is sorted ascending
// by field name.
func BuildFields(samples []*record.Metadata) []Field {
	accums := make(map[string]*fieldAccum)
	var order []string
	present := 0

	for _, md := range samples {
		if md == nil {
			continue
		}
		present++
		for _, key := range md.Keys() {
			v, _ := md.Get(key)
			a, ok := accums[key]
			if !ok {
				a = &fieldAccum{seen: make(map[string]struct{})}
				accums[key] = a
				order = append(order, key)
			}
			a.observe(v)
		}
	}

	fields := make([]Field, 0, len(order))
	for _, key := range order {
		a := accums[key]
		tags := a.tags
		if a.count < present {
			tags = append(tags, absentTag)
		}
		fields = append(fields, Field{
			name:    key,
			typ:     strings.Join(tags, " | "),
			samples: a.samples,
		})
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].name < fields[j].name })
	return fields
}
