package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `---
title: "We Are Legion"
author: "Dennis E. Taylor"
last-synced: 2026-08-01 10:00:00
highlights: 3
notes: 1
highlights-hash: abc123
progress: 33.3%
chapter: 12
last-read: 2026-07-31
tags: [moonsync/book]
---

# We Are Legion

*by Dennis E. Taylor*

## My Notes

Replicant Bob is the best Bob.

## Highlights

> [!quote] Chapter 1
> some text
`

func TestParseDocument(t *testing.T) {
	doc := ParseDocument(sampleDocument)

	assert.Equal(t, "We Are Legion", doc.Title)
	assert.Equal(t, "Dennis E. Taylor", doc.Author)
	assert.Equal(t, "abc123", doc.Hash)
	assert.Equal(t, 3, doc.Highlights)
	require.True(t, doc.HasProgress)
	assert.InDelta(t, 33.3, doc.Progress, 0.0001)
	assert.Equal(t, "2026-07-31", doc.LastRead)
	assert.False(t, doc.Manual)
	assert.False(t, doc.CustomMetadata)
	assert.Equal(t, "Replicant Bob is the best Bob.", doc.UserNotes)
	assert.True(t, doc.HasUserContent())
}

func TestParseDocumentPlaceholderIsNotUserContent(t *testing.T) {
	doc := ParseDocument(`---
title: "Dune"
---

## My Notes

%% Add your personal notes here %%

## Highlights
`)

	assert.Equal(t, "%% Add your personal notes here %%", doc.UserNotes)
	assert.False(t, doc.HasUserContent())
}

func TestParseDocumentWithoutFrontmatterIsManual(t *testing.T) {
	doc := ParseDocument("# Just a note\n\nsome prose\n")
	assert.True(t, doc.Manual)
	assert.Empty(t, doc.Title)
}

func TestParseDocumentFlags(t *testing.T) {
	doc := ParseDocument(`---
title: "Dune"
manual: true
custom-metadata: true
---
`)
	assert.True(t, doc.Manual)
	assert.True(t, doc.CustomMetadata)
}

func TestBodyWithoutHighlights(t *testing.T) {
	doc := ParseDocument(sampleDocument)
	body := doc.BodyWithoutHighlights()

	assert.Contains(t, body, "Replicant Bob is the best Bob.")
	assert.NotContains(t, body, "## Highlights")
	assert.NotContains(t, body, "some text")
}

func TestUpdateHeaderFields(t *testing.T) {
	header := `---
title: "Dune"
highlights: 3
my-custom-field: kept
---
`
	updated := UpdateHeaderFields(header, []HeaderField{
		{Key: "highlights", Value: "5"},
		{Key: "highlights-hash", Value: "def456"},
	})

	assert.Contains(t, updated, `title: "Dune"`)
	assert.Contains(t, updated, "my-custom-field: kept")
	assert.Contains(t, updated, "highlights: 5")
	assert.NotContains(t, updated, "highlights: 3")
	// missing fields are appended before the closing delimiter
	assert.Contains(t, updated, "highlights-hash: def456\n---\n")
}
