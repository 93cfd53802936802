package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrlokans/moonsync/internal/entities"
)

// OpenLibraryClient fetches book metadata from the OpenLibrary API. In the
// two-source merge it is source A: the preferred origin for cover images
// and the only origin for series information.
type OpenLibraryClient struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rateLimiter
}

// NewOpenLibraryClient creates a new OpenLibrary API client with rate limiting.
func NewOpenLibraryClient() *OpenLibraryClient {
	return &OpenLibraryClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     "https://openlibrary.org",
		rateLimiter: newRateLimiter(time.Second), // 1 request per second
	}
}

// Name implements Provider.
func (c *OpenLibraryClient) Name() string { return "openlibrary" }

// Search looks up a book by title and author, returning the best match.
func (c *OpenLibraryClient) Search(ctx context.Context, title, author string) (*entities.BookMetadata, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	c.rateLimiter.wait()

	q := url.QueryEscape(title)
	if author != "" {
		q = url.QueryEscape(fmt.Sprintf("%s %s", title, author))
	}

	searchURL := fmt.Sprintf("%s/search.json?q=%s&limit=5", c.baseURL, q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var searchResult openLibrarySearchResult
	if err := json.NewDecoder(resp.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if len(searchResult.Docs) == 0 {
		return nil, nil
	}

	bestDoc := c.findBestMatch(searchResult.Docs, title, author)
	metadata := c.convertSearchDoc(bestDoc)

	// Series (and occasionally a missing description) lives on the edition
	// record, not the search doc.
	if bestDoc.CoverEditionKey != "" {
		if edition, err := c.fetchEditionDetails(ctx, bestDoc.CoverEditionKey); err == nil {
			c.enrichFromEdition(metadata, edition)
		}
	}

	return metadata, nil
}

func (c *OpenLibraryClient) findBestMatch(docs []openLibrarySearchDoc, title, author string) *openLibrarySearchDoc {
	titleLower := strings.ToLower(title)
	authorLower := strings.ToLower(author)

	var bestMatch *openLibrarySearchDoc
	bestScore := -1

	for i := range docs {
		doc := &docs[i]
		score := 0

		// Exact title match
		if strings.ToLower(doc.Title) == titleLower {
			score += 10
		} else if strings.Contains(strings.ToLower(doc.Title), titleLower) {
			score += 5
		}

		// Author match
		if author != "" && len(doc.AuthorName) > 0 {
			for _, docAuthor := range doc.AuthorName {
				if strings.ToLower(docAuthor) == authorLower {
					score += 10
					break
				} else if strings.Contains(strings.ToLower(docAuthor), authorLower) {
					score += 5
					break
				}
			}
		}

		// Prefer books with covers
		if doc.CoverI != 0 {
			score += 2
		}
		// Prefer books with an edition record we can follow for series
		if doc.CoverEditionKey != "" {
			score++
		}

		if score > bestScore {
			bestScore = score
			bestMatch = doc
		}
	}

	if bestMatch == nil && len(docs) > 0 {
		bestMatch = &docs[0]
	}

	return bestMatch
}

// fetchEditionDetails fetches the edition record behind a search doc.
func (c *OpenLibraryClient) fetchEditionDetails(ctx context.Context, editionKey string) (*openLibraryEdition, error) {
	if editionKey == "" {
		return nil, fmt.Errorf("empty edition key")
	}

	c.rateLimiter.wait()

	url := fmt.Sprintf("%s/books/%s.json", c.baseURL, editionKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status: %d", resp.StatusCode)
	}

	var edition openLibraryEdition
	if err := json.NewDecoder(resp.Body).Decode(&edition); err != nil {
		return nil, err
	}

	return &edition, nil
}

func (c *OpenLibraryClient) convertSearchDoc(doc *openLibrarySearchDoc) *entities.BookMetadata {
	metadata := &entities.BookMetadata{
		Title: doc.Title,
	}

	if doc.FirstPublishYear > 0 {
		metadata.PublishedDate = fmt.Sprintf("%d", doc.FirstPublishYear)
	}
	if len(doc.AuthorName) > 0 {
		metadata.Author = doc.AuthorName[0]
	}
	if len(doc.Publisher) > 0 {
		metadata.Publisher = doc.Publisher[0]
	}
	if len(doc.Language) > 0 {
		metadata.Language = doc.Language[0]
	}
	if doc.PageCountMedian > 0 {
		metadata.PageCount = doc.PageCountMedian
	}
	if doc.CoverI != 0 {
		metadata.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverI)
	} else if len(doc.ISBN) > 0 {
		metadata.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/isbn/%s-L.jpg", doc.ISBN[0])
	}

	if len(doc.Subject) > 0 {
		metadata.Genres = doc.Subject
		if len(metadata.Genres) > 10 {
			metadata.Genres = metadata.Genres[:10]
		}
	}

	return metadata
}

func (c *OpenLibraryClient) enrichFromEdition(metadata *entities.BookMetadata, edition *openLibraryEdition) {
	if len(edition.Series) > 0 {
		metadata.Series = strings.TrimSpace(strings.TrimSuffix(edition.Series[0], ";"))
	}
	if metadata.Publisher == "" && len(edition.Publishers) > 0 {
		metadata.Publisher = edition.Publishers[0]
	}
	if metadata.PageCount == 0 && edition.NumberOfPages > 0 {
		metadata.PageCount = edition.NumberOfPages
	}
	if metadata.PublishedDate == "" && edition.PublishDate != "" {
		metadata.PublishedDate = edition.PublishDate
	}
	if metadata.Description == "" {
		switch v := edition.Description.(type) {
		case string:
			metadata.Description = v
		case map[string]any:
			if val, ok := v["value"].(string); ok {
				metadata.Description = val
			}
		}
	}
}

// OpenLibrary API response types (internal)

type openLibrarySearchResult struct {
	NumFound int                    `json:"numFound"`
	Docs     []openLibrarySearchDoc `json:"docs"`
}

type openLibrarySearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	Publisher        []string `json:"publisher"`
	ISBN             []string `json:"isbn"`
	CoverI           int      `json:"cover_i"`
	CoverEditionKey  string   `json:"cover_edition_key"`
	Subject          []string `json:"subject"`
	Language         []string `json:"language"`
	PageCountMedian  int      `json:"number_of_pages_median"`
}

type openLibraryEdition struct {
	Key           string   `json:"key"`
	Title         string   `json:"title"`
	Publishers    []string `json:"publishers"`
	PublishDate   string   `json:"publish_date"`
	Series        []string `json:"series"`
	NumberOfPages int      `json:"number_of_pages"`
	Description   any      `json:"description"` // string or {type, value}
}
