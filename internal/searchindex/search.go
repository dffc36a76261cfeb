package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

// searchRequest mirrors the Algolia-shaped search body. facetFilters is
// a list of OR-groups; a single equality filter is its own one-element
// group, e.g. [["_searchInternal.expiresAt:0001700000000"]].
type searchRequest struct {
	Query             string     `json:"query"`
	Facets            []string   `json:"facets,omitempty"`
	FacetFilters      [][]string `json:"facetFilters,omitempty"`
	HitsPerPage       int        `json:"hitsPerPage"`
	SortFacetValuesBy string     `json:"sortFacetValuesBy,omitempty"`
}

type searchResponse struct {
	Hits   []map[string]any        `json:"hits"`
	Facets map[string]map[string]int `json:"facets"`
}

// FacetValues returns the distinct values of facet and their hit counts,
// sorted ascending by value. The refresh scanner walks this list
// oldest-bucket-first; values are zero-padded epoch strings so lexical
// order and numeric order agree.
func (c *Client) FacetValues(ctx context.Context, facet string) ([]watch.FacetBucket, error) {
	req := searchRequest{
		Facets:      []string{facet},
		HitsPerPage: 0,
	}

	resp, err := c.request(ctx, http.MethodPost, "/query", req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("searchindex: decoding facet response: %w", err)
	}

	counts := parsed.Facets[facet]
	buckets := make([]watch.FacetBucket, 0, len(counts))

	for value, count := range counts {
		buckets = append(buckets, watch.FacetBucket{Value: value, Count: count})
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Value < buckets[j].Value })

	return buckets, nil
}

// StaleInBucket returns up to limit records whose facet value equals
// bucket, used by the refresh scanner to find the most overdue records.
func (c *Client) StaleInBucket(ctx context.Context, bucket string, limit int) ([]watch.StaleRecord, error) {
	req := searchRequest{
		FacetFilters: [][]string{{"_searchInternal.expiresAt:" + bucket}},
		HitsPerPage:  limit,
	}

	resp, err := c.request(ctx, http.MethodPost, "/query", req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("searchindex: decoding search response: %w", err)
	}

	records := make([]watch.StaleRecord, 0, len(parsed.Hits))

	for _, hit := range parsed.Hits {
		id, _ := hit["objectID"].(string)
		rev, _ := hit["_searchInternal.rev"].(string)
		modified, _ := hit["_searchInternal.modified"].(float64)

		records = append(records, watch.StaleRecord{ID: id, Rev: rev, Modified: int64(modified)})
	}

	return records, nil
}
