package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/moonsync/internal/entities"
)

// ExtendedFields is the group of six fields looked up as one atomic unit:
// either all of them were attempted or none were. Key presence in the
// stored JSON, not field truthiness, is the "already attempted" signal,
// so a book with no known publisher is not re-fetched forever. None of the
// fields use omitempty for exactly that reason.
type ExtendedFields struct {
	PublishedDate string   `json:"published_date"`
	Publisher     string   `json:"publisher"`
	PageCount     int      `json:"page_count"`
	Genres        []string `json:"genres"`
	Series        string   `json:"series"`
	Language      string   `json:"language"`
}

// CacheEntry is one stored metadata bag keyed by normalized (title, author).
type CacheEntry struct {
	Title       string          `json:"title,omitempty"`
	Author      string          `json:"author,omitempty"`
	CoverURL    string          `json:"cover_url,omitempty"`
	Description string          `json:"description,omitempty"`
	Extended    *ExtendedFields `json:"extended,omitempty"`
	Provenance  string          `json:"provenance,omitempty"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// Metadata converts the entry back into the in-memory metadata bag.
func (e *CacheEntry) Metadata() *entities.BookMetadata {
	m := &entities.BookMetadata{
		Title:       e.Title,
		Author:      e.Author,
		CoverURL:    e.CoverURL,
		Description: e.Description,
	}
	if e.Extended != nil {
		m.PublishedDate = e.Extended.PublishedDate
		m.Publisher = e.Extended.Publisher
		m.PageCount = e.Extended.PageCount
		m.Genres = e.Extended.Genres
		m.Series = e.Extended.Series
		m.Language = e.Extended.Language
	}
	return m
}

// Cache is a whole-file JSON persistence of metadata lookups. It never
// expires entries on its own; only deleting the cache file forces a
// re-fetch.
type Cache struct {
	path    string
	entries map[string]*CacheEntry
	dirty   bool
}

// OpenCache loads the cache file, treating a missing file as an empty cache.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{
		path:    path,
		entries: make(map[string]*CacheEntry),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parse metadata cache: %w", err)
	}

	return c, nil
}

// Get returns the stored entry for a book, if any.
func (c *Cache) Get(title, author string) (*CacheEntry, bool) {
	entry, ok := c.entries[cacheKey(title, author)]
	return entry, ok
}

// Put stores an entry, replacing any previous value for the same key.
func (c *Cache) Put(title, author string, entry *CacheEntry) {
	c.entries[cacheKey(title, author)] = entry
	c.dirty = true
}

// Attempted reports whether the extended field group was ever looked up for
// this book, regardless of what the lookup returned.
func (c *Cache) Attempted(title, author string) bool {
	entry, ok := c.entries[cacheKey(title, author)]
	return ok && entry.Extended != nil
}

// Save writes the whole cache file back to disk when anything changed.
func (c *Cache) Save() error {
	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata cache: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("write metadata cache: %w", err)
	}

	c.dirty = false
	return nil
}

func cacheKey(title, author string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(author))
}

// CachedResolver memoizes Resolver lookups through a Cache. The
// synchronizer always goes through this type so repeated sync passes only
// hit the network for books never attempted before. It is safe for
// concurrent use; the prefetch pool shares one instance.
type CachedResolver struct {
	resolver *Resolver
	cache    *Cache
	now      func() time.Time

	mu sync.Mutex
}

// NewCachedResolver wires a resolver to its persistent cache.
func NewCachedResolver(resolver *Resolver, cache *Cache) *CachedResolver {
	return &CachedResolver{resolver: resolver, cache: cache, now: time.Now}
}

// Lookup returns the metadata bag for a book, fetching and caching it when
// it was never attempted before. A lookup where every source failed is not
// recorded as attempted, so the next sync pass retries it.
func (c *CachedResolver) Lookup(ctx context.Context, title, author string) (*entities.BookMetadata, error) {
	c.mu.Lock()
	if entry, ok := c.cache.Get(title, author); ok && entry.Extended != nil {
		c.mu.Unlock()
		return entry.Metadata(), nil
	}
	c.mu.Unlock()

	merged, prov, err := c.resolver.Resolve(ctx, title, author)
	if err != nil {
		return merged, err
	}

	entry := &CacheEntry{
		Title:       merged.Title,
		Author:      merged.Author,
		CoverURL:    merged.CoverURL,
		Description: merged.Description,
		Extended: &ExtendedFields{
			PublishedDate: merged.PublishedDate,
			Publisher:     merged.Publisher,
			PageCount:     merged.PageCount,
			Genres:        merged.Genres,
			Series:        merged.Series,
			Language:      merged.Language,
		},
		Provenance: string(prov),
		FetchedAt:  c.now(),
	}
	c.mu.Lock()
	c.cache.Put(title, author, entry)
	c.mu.Unlock()

	return merged, nil
}

// Attempted reports whether extended metadata was ever looked up for a book.
func (c *CachedResolver) Attempted(title, author string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Attempted(title, author)
}

// Flush persists the underlying cache file.
func (c *CachedResolver) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Save()
}
