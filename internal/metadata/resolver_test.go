package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/moonsync/internal/entities"
)

type fakeProvider struct {
	name string
	meta *entities.BookMetadata
	err  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, title, author string) (*entities.BookMetadata, error) {
	return f.meta, f.err
}

func TestResolveMergePrecedence(t *testing.T) {
	a := &fakeProvider{name: "a", meta: &entities.BookMetadata{
		Title:         "We Are Legion (We Are Bob)",
		Author:        "Dennis Taylor",
		CoverURL:      "https://a.example/cover.jpg",
		Description:   "description from A",
		PublishedDate: "2016-01-01",
		Series:        "Bobiverse",
		PageCount:     300,
		Genres:        []string{"Science Fiction", "humor"},
	}}
	b := &fakeProvider{name: "b", meta: &entities.BookMetadata{
		Title:         "We Are Legion",
		Author:        "Dennis E. Taylor",
		CoverURL:      "https://b.example/cover.jpg",
		Description:   "description from B",
		PublishedDate: "2016",
		Publisher:     "Worldbuilders Press",
		PageCount:     304,
		Genres:        []string{"Humor", "Fiction"},
		Language:      "en",
	}}

	merged, prov, err := NewResolver(a, b, nil).Resolve(context.Background(), "We Are Legion", "Taylor")
	require.NoError(t, err)

	// cover from A; description and bibliographic fields from B
	assert.Equal(t, "https://a.example/cover.jpg", merged.CoverURL)
	assert.Equal(t, "description from B", merged.Description)
	assert.Equal(t, "We Are Legion", merged.Title)
	assert.Equal(t, "Dennis E. Taylor", merged.Author)
	assert.Equal(t, "2016", merged.PublishedDate)
	assert.Equal(t, "Worldbuilders Press", merged.Publisher)
	assert.Equal(t, 304, merged.PageCount)
	assert.Equal(t, "en", merged.Language)
	// series only ever comes from A
	assert.Equal(t, "Bobiverse", merged.Series)
	// genre union: B first, case-insensitive dedupe
	assert.Equal(t, []string{"Humor", "Fiction", "Science Fiction"}, merged.Genres)
	// description supplier wins provenance, B on ties
	assert.Equal(t, Provenance("b"), prov)
}

func TestResolveDisjointSources(t *testing.T) {
	a := &fakeProvider{name: "a", meta: &entities.BookMetadata{
		CoverURL: "https://a.example/cover.jpg",
		Series:   "Bobiverse",
	}}
	b := &fakeProvider{name: "b", meta: &entities.BookMetadata{
		Description: "description from B",
		Publisher:   "Worldbuilders Press",
	}}

	merged, prov, err := NewResolver(a, b, nil).Resolve(context.Background(), "x", "y")
	require.NoError(t, err)

	assert.Equal(t, "https://a.example/cover.jpg", merged.CoverURL)
	assert.Equal(t, "Bobiverse", merged.Series)
	assert.Equal(t, "description from B", merged.Description)
	assert.Equal(t, "Worldbuilders Press", merged.Publisher)
	assert.Equal(t, Provenance("b"), prov)
}

func TestResolveSingleSourceFailure(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("timeout")}
	b := &fakeProvider{name: "b", meta: &entities.BookMetadata{Description: "desc"}}

	merged, prov, err := NewResolver(a, b, nil).Resolve(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "desc", merged.Description)
	assert.Equal(t, Provenance("b"), prov)
}

func TestResolveBothSourcesFail(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("timeout")}
	b := &fakeProvider{name: "b", err: errors.New("unreachable")}

	_, prov, err := NewResolver(a, b, nil).Resolve(context.Background(), "x", "y")
	assert.Error(t, err)
	assert.Equal(t, ProvenanceNone, prov)
}

func TestResolveCoverOnlyProvenance(t *testing.T) {
	a := &fakeProvider{name: "a", meta: &entities.BookMetadata{CoverURL: "https://a.example/c.jpg"}}
	b := &fakeProvider{name: "b", meta: nil}

	_, prov, err := NewResolver(a, b, nil).Resolve(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, Provenance("a"), prov)
}

func TestResolveNoMatchAnywhere(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}

	merged, prov, err := NewResolver(a, b, nil).Resolve(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.True(t, merged.IsZero())
	assert.Equal(t, ProvenanceNone, prov)
}
