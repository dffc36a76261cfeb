// Package format turns a raw registry document into an indexable
// record. Format is a pure function — no I/O, no retries — so the
// pipeline's idempotence guarantee (the formatter and index upsert
// must together be idempotent) reduces to this package alone.
package format

import (
	"fmt"
	"strconv"
	"time"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

// Formatter is the default implementation of watch.Formatter. clock is
// swappable so tests can pin the expiry facet to a fixed instant.
type Formatter struct {
	clock func() time.Time
}

// New returns a Formatter.
func New() *Formatter {
	return &Formatter{clock: time.Now}
}

// maxReadmeBytes bounds how much of a package's README body is carried
// into the index record; registries routinely host READMEs that dwarf
// every other field combined.
const maxReadmeBytes = 32 * 1024

// expiresAtWidth is the fixed width epoch strings are zero-padded to
// before being written to the facet the refresh scanner sorts on —
// lexical sort only matches numeric sort when every value has the same
// width.
const expiresAtWidth = 13

// defaultTTL is how far in the future a record's expiry facet is set
// from the moment it is formatted, before the refresh scanner will
// consider it stale again.
const defaultTTL = 24 * time.Hour

// Format converts doc into a Record, or returns (nil, nil) to signal
// "skip".
func (f *Formatter) Format(doc watch.Document) (*watch.Record, error) {
	now := f.clock()

	if doc.Deleted {
		return nil, nil
	}

	name, _ := doc.Contents["name"].(string)
	if name == "" {
		return nil, nil
	}

	distTags, _ := doc.Contents["dist-tags"].(map[string]any)

	latestVersion := latestFrom(distTags)

	versions, _ := doc.Contents["versions"].(map[string]any)

	var latest map[string]any
	if latestVersion != "" {
		latest, _ = versions[latestVersion].(map[string]any)
	}

	description, _ := doc.Contents["description"].(string)
	if description == "" && latest != nil {
		description, _ = latest["description"].(string)
	}

	fields := map[string]any{
		"name":        name,
		"description": description,
		"version":     latestVersion,
		"keywords":    normalizeKeywords(name, keywordsOf(doc.Contents, latest)),
		"maintainers": doc.Contents["maintainers"],
		"readme":      truncateReadme(readmeOf(doc.Contents)),
		"_searchInternal.modified":  modifiedEpoch(doc.Contents, now),
		"_searchInternal.rev":       doc.Rev,
		"_searchInternal.expiresAt": padEpoch(now.Add(defaultTTL).Unix()),
	}

	return &watch.Record{ObjectID: name, Fields: fields}, nil
}

func latestFrom(distTags map[string]any) string {
	if distTags == nil {
		return ""
	}

	if v, ok := distTags["latest"].(string); ok {
		return v
	}

	return ""
}

func readmeOf(contents map[string]any) string {
	readme, _ := contents["readme"].(string)
	return readme
}

func truncateReadme(readme string) string {
	if len(readme) <= maxReadmeBytes {
		return readme
	}

	return readme[:maxReadmeBytes]
}

func modifiedEpoch(contents map[string]any, now time.Time) int64 {
	timeField, _ := contents["time"].(map[string]any)
	if timeField == nil {
		return now.Unix()
	}

	modified, _ := timeField["modified"].(string)
	if modified == "" {
		return now.Unix()
	}

	parsed, err := time.Parse(time.RFC3339, modified)
	if err != nil {
		return now.Unix()
	}

	return parsed.Unix()
}

// padEpoch zero-pads epoch to expiresAtWidth digits so the facet it is
// written to sorts lexically in numeric order.
func padEpoch(epoch int64) string {
	return fmt.Sprintf("%0*s", expiresAtWidth, strconv.FormatInt(epoch, 10))
}
