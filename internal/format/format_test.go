package format

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

func fixedFormatter(now time.Time) *Formatter {
	return &Formatter{clock: func() time.Time { return now }}
}

func TestFormat_DeletedDocumentIsSkipped(t *testing.T) {
	f := New()
	record, err := f.Format(watch.Document{ID: "left-pad", Deleted: true})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFormat_MissingNameIsSkipped(t *testing.T) {
	f := New()
	record, err := f.Format(watch.Document{ID: "left-pad", Contents: map[string]any{}})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFormat_PopulatesCoreFields(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := fixedFormatter(now)

	doc := watch.Document{
		ID:  "left-pad",
		Rev: "3-c",
		Contents: map[string]any{
			"name":        "left-pad",
			"description": "pad a string",
			"dist-tags":   map[string]any{"latest": "1.3.0"},
			"versions": map[string]any{
				"1.3.0": map[string]any{"description": "old description"},
			},
			"keywords": []any{"string", "pad"},
		},
	}

	record, err := f.Format(doc)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "left-pad", record.ObjectID)
	assert.Equal(t, "left-pad", record.Fields["name"])
	assert.Equal(t, "pad a string", record.Fields["description"])
	assert.Equal(t, "1.3.0", record.Fields["version"])
	assert.Equal(t, []string{"string", "pad"}, record.Fields["keywords"])
	assert.Equal(t, "3-c", record.Fields["_searchInternal.rev"])
}

func TestFormat_FallsBackToLatestVersionDescription(t *testing.T) {
	now := time.Now()
	f := fixedFormatter(now)

	doc := watch.Document{
		Contents: map[string]any{
			"name":      "left-pad",
			"dist-tags": map[string]any{"latest": "1.0.0"},
			"versions": map[string]any{
				"1.0.0": map[string]any{"description": "version-level description"},
			},
		},
	}

	record, err := f.Format(doc)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "version-level description", record.Fields["description"])
}

func TestFormat_TruncatesOversizedReadme(t *testing.T) {
	now := time.Now()
	f := fixedFormatter(now)

	longReadme := strings.Repeat("a", maxReadmeBytes+500)
	doc := watch.Document{Contents: map[string]any{"name": "left-pad", "readme": longReadme}}

	record, err := f.Format(doc)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Len(t, record.Fields["readme"], maxReadmeBytes)
}

func TestFormat_ModifiedUsesTimeFieldWhenPresent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := fixedFormatter(now)

	modified := "2020-06-15T12:00:00Z"
	doc := watch.Document{Contents: map[string]any{
		"name": "left-pad",
		"time": map[string]any{"modified": modified},
	}}

	record, err := f.Format(doc)
	require.NoError(t, err)
	require.NotNil(t, record)

	parsed, _ := time.Parse(time.RFC3339, modified)
	assert.Equal(t, parsed.Unix(), record.Fields["_searchInternal.modified"])
}

func TestFormat_ModifiedFallsBackToNowWhenTimeFieldMissing(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := fixedFormatter(now)

	doc := watch.Document{Contents: map[string]any{"name": "left-pad"}}

	record, err := f.Format(doc)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, now.Unix(), record.Fields["_searchInternal.modified"])
}

func TestFormat_ExpiresAtIsZeroPaddedAndInTheFuture(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := fixedFormatter(now)

	doc := watch.Document{Contents: map[string]any{"name": "left-pad"}}

	record, err := f.Format(doc)
	require.NoError(t, err)
	require.NotNil(t, record)

	expiresAt := record.Fields["_searchInternal.expiresAt"].(string)
	assert.Len(t, expiresAt, expiresAtWidth)

	wantEpoch := now.Add(defaultTTL).Unix()
	assert.Equal(t, padEpoch(wantEpoch), expiresAt)
}

func TestPadEpoch_ZeroPadsToFixedWidth(t *testing.T) {
	got := padEpoch(1700000100)
	assert.Len(t, got, expiresAtWidth)
	assert.Equal(t, "0001700000100", got)
}
