package metadata

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mrlokans/moonsync/internal/entities"
)

// Provenance records which source supplied the description of a merged
// record. A record with neither cover nor description has no provenance.
type Provenance string

const (
	ProvenanceNone Provenance = ""
)

// Resolver combines two independent bibliographic sources into one
// normalized record with fixed field-preference rules. Source A is the
// cover/series source (OpenLibrary); source B is the description and
// bibliographic source (Google Books).
type Resolver struct {
	sourceA Provider
	sourceB Provider
	logger  *log.Logger
}

// NewResolver creates a resolver over the two sources. A nil logger falls
// back to a default stderr logger.
func NewResolver(sourceA, sourceB Provider, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(os.Stderr, "[metadata] ", log.LstdFlags)
	}
	return &Resolver{sourceA: sourceA, sourceB: sourceB, logger: logger}
}

// Resolve queries both sources concurrently and merges the results. A
// failure in one source degrades to an all-null partial result for that
// source; it never aborts the merge. The returned error is non-nil only
// when both sources failed outright, so the caller can avoid recording the
// lookup as attempted.
func (r *Resolver) Resolve(ctx context.Context, title, author string) (*entities.BookMetadata, Provenance, error) {
	type lookup struct {
		meta *entities.BookMetadata
		err  error
	}

	chA := make(chan lookup, 1)
	chB := make(chan lookup, 1)

	go func() {
		meta, err := r.sourceA.Search(ctx, title, author)
		chA <- lookup{meta, err}
	}()
	go func() {
		meta, err := r.sourceB.Search(ctx, title, author)
		chB <- lookup{meta, err}
	}()

	resA := <-chA
	resB := <-chB

	if resA.err != nil {
		r.logger.Printf("%s lookup failed for %q: %v", r.sourceA.Name(), title, resA.err)
	}
	if resB.err != nil {
		r.logger.Printf("%s lookup failed for %q: %v", r.sourceB.Name(), title, resB.err)
	}

	a := resA.meta
	b := resB.meta
	if a == nil {
		a = &entities.BookMetadata{}
	}
	if b == nil {
		b = &entities.BookMetadata{}
	}

	var err error
	if resA.err != nil && resB.err != nil {
		err = fmt.Errorf("all metadata sources failed for %q: %v; %v", title, resA.err, resB.err)
	}

	merged := merge(a, b)
	return merged, provenance(a, b, merged, r.sourceA.Name(), r.sourceB.Name()), err
}

// merge applies the per-field precedence rules.
func merge(a, b *entities.BookMetadata) *entities.BookMetadata {
	merged := &entities.BookMetadata{
		// Cover: prefer A, fall back to B.
		CoverURL: firstNonEmpty(a.CoverURL, b.CoverURL),
		// Description and the core bibliographic fields: prefer B.
		Description:   firstNonEmpty(b.Description, a.Description),
		Title:         firstNonEmpty(b.Title, a.Title),
		Author:        firstNonEmpty(b.Author, a.Author),
		PublishedDate: firstNonEmpty(b.PublishedDate, a.PublishedDate),
		Publisher:     firstNonEmpty(b.Publisher, a.Publisher),
		Language:      firstNonEmpty(b.Language, a.Language),
		// Series comes exclusively from A; B has no equivalent field.
		Series: a.Series,
	}
	merged.PageCount = b.PageCount
	if merged.PageCount == 0 {
		merged.PageCount = a.PageCount
	}
	merged.Genres = unionGenres(b.Genres, a.Genres)
	return merged
}

// unionGenres concatenates both genre lists, B's entries first, dropping
// case-insensitive duplicates.
func unionGenres(first, second []string) []string {
	seen := make(map[string]struct{}, len(first)+len(second))
	var out []string
	for _, list := range [][]string{first, second} {
		for _, genre := range list {
			genre = strings.TrimSpace(genre)
			if genre == "" {
				continue
			}
			key := strings.ToLower(genre)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, genre)
		}
	}
	return out
}

// provenance attributes the merged record to whichever source supplied its
// description, B winning ties. A record with neither cover nor description
// has no provenance; a cover-only record is attributed to the cover source.
func provenance(a, b, merged *entities.BookMetadata, nameA, nameB string) Provenance {
	if merged.Description == "" && merged.CoverURL == "" {
		return ProvenanceNone
	}
	if b.Description != "" {
		return Provenance(nameB)
	}
	if a.Description != "" {
		return Provenance(nameA)
	}
	if a.CoverURL != "" {
		return Provenance(nameA)
	}
	return Provenance(nameB)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
