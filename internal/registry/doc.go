package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

// docResponse mirrors the registry's document-fetch response shape.
// A lookup failure is detected by a populated Error field and an absent
// ID — not by the HTTP status code, since registries
// commonly return 200 with an embedded error body for missing revisions.
type docResponse struct {
	ID      string         `json:"_id"`
	Rev     string         `json:"_rev"`
	Deleted bool           `json:"_deleted"`
	Error   string         `json:"error"`
	Reason  string         `json:"reason"`
	Fields  map[string]any `json:"-"`
}

// GetDoc fetches the document at the given revision.
func (c *Client) GetDoc(ctx context.Context, id, rev string) (watch.Document, error) {
	path := fmt.Sprintf("/%s?rev=%s", url.PathEscape(id), url.QueryEscape(rev))

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return watch.Document{}, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return watch.Document{}, fmt.Errorf("registry: reading document body: %w", err)
	}

	var raw map[string]any

	if err := json.Unmarshal(body, &raw); err != nil {
		return watch.Document{}, fmt.Errorf("registry: decoding document: %w", err)
	}

	var parsed docResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return watch.Document{}, fmt.Errorf("registry: decoding document: %w", err)
	}

	if parsed.Error != "" && parsed.ID == "" {
		return watch.Document{}, fmt.Errorf("%w: %s (%s)", watch.ErrLookupFailure, parsed.Error, parsed.Reason)
	}

	return watch.Document{
		ID:       parsed.ID,
		Rev:      parsed.Rev,
		Deleted:  parsed.Deleted,
		Contents: raw,
	}, nil
}

// infoResponse mirrors the registry's root info document.
type infoResponse struct {
	UpdateSeq int64 `json:"update_seq"`
}

// Info returns the registry's current head sequence, used only for
// telemetry.
func (c *Client) Info(ctx context.Context) (watch.RegistryInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return watch.RegistryInfo{}, err
	}

	defer resp.Body.Close()

	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return watch.RegistryInfo{}, fmt.Errorf("registry: decoding info: %w", err)
	}

	return watch.RegistryInfo{UpdateSeq: info.UpdateSeq}, nil
}
