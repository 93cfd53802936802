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

// GoogleBooksClient fetches book metadata from the Google Books volumes
// API. In the two-source merge it is source B: the preferred origin for
// descriptions and for the core bibliographic fields.
type GoogleBooksClient struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rateLimiter
}

// NewGoogleBooksClient creates a new Google Books API client with rate limiting.
func NewGoogleBooksClient() *GoogleBooksClient {
	return &GoogleBooksClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     "https://www.googleapis.com/books/v1",
		rateLimiter: newRateLimiter(500 * time.Millisecond),
	}
}

// Name implements Provider.
func (c *GoogleBooksClient) Name() string { return "googlebooks" }

// Search looks up a book by title and author, returning the best match.
func (c *GoogleBooksClient) Search(ctx context.Context, title, author string) (*entities.BookMetadata, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	c.rateLimiter.wait()

	query := fmt.Sprintf("intitle:%s", title)
	if author != "" {
		query += fmt.Sprintf(" inauthor:%s", author)
	}

	searchURL := fmt.Sprintf("%s/volumes?q=%s&maxResults=5", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search volumes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result googleVolumesResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, nil
	}

	best := c.findBestMatch(result.Items, title, author)
	return c.convertVolume(best), nil
}

func (c *GoogleBooksClient) findBestMatch(items []googleVolume, title, author string) *googleVolume {
	titleLower := strings.ToLower(title)
	authorLower := strings.ToLower(author)

	var bestMatch *googleVolume
	bestScore := -1

	for i := range items {
		item := &items[i]
		info := item.VolumeInfo
		score := 0

		if strings.ToLower(info.Title) == titleLower {
			score += 10
		} else if strings.Contains(strings.ToLower(info.Title), titleLower) {
			score += 5
		}

		if author != "" {
			for _, a := range info.Authors {
				if strings.ToLower(a) == authorLower {
					score += 10
					break
				} else if strings.Contains(strings.ToLower(a), authorLower) {
					score += 5
					break
				}
			}
		}

		if info.Description != "" {
			score += 2
		}
		if info.ImageLinks != nil && info.ImageLinks.Thumbnail != "" {
			score++
		}

		if score > bestScore {
			bestScore = score
			bestMatch = item
		}
	}

	if bestMatch == nil {
		bestMatch = &items[0]
	}

	return bestMatch
}

func (c *GoogleBooksClient) convertVolume(v *googleVolume) *entities.BookMetadata {
	info := v.VolumeInfo

	metadata := &entities.BookMetadata{
		Title:         info.Title,
		Description:   info.Description,
		PublishedDate: info.PublishedDate,
		Publisher:     info.Publisher,
		PageCount:     info.PageCount,
		Genres:        info.Categories,
		Language:      info.Language,
	}
	if len(info.Authors) > 0 {
		metadata.Author = info.Authors[0]
	}
	if info.ImageLinks != nil {
		cover := info.ImageLinks.Thumbnail
		if info.ImageLinks.Small != "" {
			cover = info.ImageLinks.Small
		}
		// The API hands out http:// links; covers are also served over TLS.
		metadata.CoverURL = strings.Replace(cover, "http://", "https://", 1)
	}

	return metadata
}

// Google Books API response types (internal)

type googleVolumesResult struct {
	TotalItems int            `json:"totalItems"`
	Items      []googleVolume `json:"items"`
}

type googleVolume struct {
	ID         string           `json:"id"`
	VolumeInfo googleVolumeInfo `json:"volumeInfo"`
}

type googleVolumeInfo struct {
	Title         string            `json:"title"`
	Authors       []string          `json:"authors"`
	Publisher     string            `json:"publisher"`
	PublishedDate string            `json:"publishedDate"`
	Description   string            `json:"description"`
	PageCount     int               `json:"pageCount"`
	Categories    []string          `json:"categories"`
	Language      string            `json:"language"`
	ImageLinks    *googleImageLinks `json:"imageLinks"`
}

type googleImageLinks struct {
	Thumbnail string `json:"thumbnail"`
	Small     string `json:"small"`
}
