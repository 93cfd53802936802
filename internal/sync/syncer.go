package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/mrlokans/moonsync/internal/config"
	"github.com/mrlokans/moonsync/internal/entities"
	"github.com/mrlokans/moonsync/internal/render"
	"github.com/mrlokans/moonsync/internal/utils"
	"github.com/mrlokans/moonsync/internal/vault"
)

// prefetchFanout bounds the metadata prefetch pool. Prefetching is a
// latency optimization only; the per-book path fetches on demand when a
// prefetch missed.
const prefetchFanout = 5

// MetadataSource is the lookup collaborator. It is expected to memoize, so
// repeated lookups for the same book within or across passes are cheap.
type MetadataSource interface {
	Lookup(ctx context.Context, title, author string) (*entities.BookMetadata, error)
	Attempted(title, author string) bool
	Flush() error
}

// CoverFetcher caches cover images on disk, keyed by document base name.
type CoverFetcher interface {
	Has(name string) bool
	Download(ctx context.Context, url, name string) (string, error)
}

// Failure records one book that could not be reconciled.
type Failure struct {
	Title string
	Err   error
}

// Result is the bookkeeping of one sync pass.
type Result struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Deleted   int
	Failures  []Failure
}

// Changed reports whether the pass altered the document store.
func (r *Result) Changed() bool {
	return r.Created+r.Updated+r.Deleted > 0
}

// Summary is the one-line outcome shown to the user.
func (r *Result) Summary() string {
	if !r.Changed() {
		if len(r.Failures) > 0 {
			return fmt.Sprintf("sync failed: %v", r.Failures[0].Err)
		}
		return "nothing to do"
	}
	line := fmt.Sprintf("%d updated of %d", r.Created+r.Updated, r.Processed)
	if len(r.Failures) > 0 {
		line += fmt.Sprintf(" (%d failed)", len(r.Failures))
	}
	return line
}

// Syncer reconciles decoded book records against the vault. One pass owns
// its in-memory state exclusively; the caller serializes invocations.
type Syncer struct {
	store    vault.Store
	renderer *render.Renderer
	metadata MetadataSource // nil disables metadata lookups
	covers   CoverFetcher   // nil disables cover downloads
	cfg      config.Config
	logger   *log.Logger
	now      func() time.Time
}

// NewSyncer assembles a syncer. The metadata source and cover fetcher are
// optional.
func NewSyncer(store vault.Store, renderer *render.Renderer, metadata MetadataSource, covers CoverFetcher, cfg config.Config, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Syncer{
		store:    store,
		renderer: renderer,
		metadata: metadata,
		covers:   covers,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// docRef is one existing document, read once per pass.
type docRef struct {
	file    string // filename including .md
	doc     *PersistedDocument
	claimed bool
}

// Run reconciles the full book set in one pass: per-book create/update/
// skip/delete, then metadata for user-created documents, then the index
// and view regeneration when anything changed.
func (s *Syncer) Run(ctx context.Context, books map[string]*entities.Book) (*Result, error) {
	if err := s.store.MkdirAll(s.cfg.BooksDir); err != nil {
		return nil, fmt.Errorf("prepare books dir: %w", err)
	}

	refs, err := s.readDocuments()
	if err != nil {
		return nil, err
	}

	ordered := make([]*entities.Book, 0, len(books))
	for _, book := range books {
		ordered = append(ordered, book)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return strings.ToLower(ordered[i].Title) < strings.ToLower(ordered[j].Title)
	})

	s.prefetch(ctx, ordered)

	result := &Result{}
	var indexEntries []render.IndexEntry

	for _, book := range ordered {
		result.Processed++
		entry, err := s.syncBook(ctx, book, refs, result)
		if err != nil {
			s.logger.Printf("sync %q: %v", book.Title, err)
			result.Failures = append(result.Failures, Failure{Title: book.Title, Err: err})
			continue
		}
		if entry != nil {
			indexEntries = append(indexEntries, *entry)
		}
	}

	s.reconcileCustom(ctx, refs, result)

	for _, ref := range refs {
		if ref.claimed {
			continue
		}
		indexEntries = append(indexEntries, render.IndexEntry{
			Book:     customBook(ref),
			FileName: strings.TrimSuffix(ref.file, ".md"),
		})
	}

	if s.metadata != nil {
		if err := s.metadata.Flush(); err != nil {
			s.logger.Printf("persist metadata cache: %v", err)
		}
	}

	if result.Changed() || !s.store.Exists(s.cfg.IndexFile) {
		if err := s.writeIndex(indexEntries); err != nil {
			s.logger.Printf("write index: %v", err)
			result.Failures = append(result.Failures, Failure{Title: s.cfg.IndexFile, Err: err})
		}
	}

	return result, nil
}

// syncBook decides and executes one book's outcome. The returned index
// entry is nil when no document remains for the book.
func (s *Syncer) syncBook(ctx context.Context, book *entities.Book, refs []*docRef, result *Result) (*render.IndexEntry, error) {
	// The metadata cache is keyed by the reader's own title and author;
	// the canonical title adopted below must not change the key.
	sourceTitle, sourceAuthor := book.Title, book.Author
	s.attachMetadata(ctx, book)

	name := utils.SanitizeFilename(book.Title)
	ref := s.resolveDocument(name, book.Title, refs)

	if len(book.Highlights) == 0 {
		if ref == nil {
			if !s.cfg.Sync.TrackWithoutHighlights {
				result.Skipped++
				return nil, nil
			}
		} else if !s.cfg.Sync.TrackWithoutHighlights && !ref.doc.HasUserContent() {
			if err := s.store.Delete(s.docPath(ref.file)); err != nil {
				return nil, fmt.Errorf("delete document: %w", err)
			}
			ref.claimed = true
			ref.file = ""
			result.Deleted++
			return nil, nil
		}
	}

	hash := HighlightsHash(book)
	attempted := s.metadata == nil || s.metadata.Attempted(sourceTitle, sourceAuthor)
	if ref != nil && attempted && s.unchanged(book, ref.doc, hash) {
		ref.claimed = true
		result.Skipped++
		return s.indexEntry(book, ref.file, name), nil
	}

	coverPath := s.ensureCover(ctx, book, name)

	state := render.DocumentState{
		Hash:       hash,
		LastSynced: s.now(),
		CoverPath:  coverPath,
	}
	var content string

	switch {
	case ref == nil:
		ref = &docRef{file: name + ".md"}
		content = s.renderer.Document(book, state)
		if err := s.store.Write(s.docPath(ref.file), content); err != nil {
			return nil, fmt.Errorf("create document: %w", err)
		}
		ref.claimed = true
		result.Created++
		return s.indexEntry(book, ref.file, name), nil

	case ref.doc.Manual || ref.doc.CustomMetadata:
		state.Manual = ref.doc.Manual
		state.CustomMetadata = ref.doc.CustomMetadata
		content = s.renderPreserved(book, ref, state)

	default:
		if ref.doc.HasUserContent() {
			state.UserNotes = ref.doc.UserNotes
		}
		content = s.renderer.Document(book, state)
	}

	if err := s.store.Write(s.docPath(ref.file), content); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	ref.claimed = true
	result.Updated++
	return s.indexEntry(book, ref.file, name), nil
}

// attachMetadata refreshes the record's metadata fields. Display toggles
// never gate this; they only gate rendering. When the lookup supplies a
// canonical title or author, the record adopts it, which is what makes
// document names drift between passes.
func (s *Syncer) attachMetadata(ctx context.Context, book *entities.Book) {
	if s.metadata == nil {
		return
	}

	md, err := s.metadata.Lookup(ctx, book.Title, book.Author)
	if err != nil {
		s.logger.Printf("metadata lookup %q: %v", book.Title, err)
		return
	}
	if md == nil {
		return
	}

	book.Metadata = *md
	if md.Title != "" {
		book.Title = md.Title
	}
	if md.Author != "" {
		book.Author = md.Author
	}
}

// resolveDocument finds the existing document for a title: exact filename
// first, then the best fuzzy match over document header titles. A fuzzy
// match under a stale name is renamed to the canonical one, best-effort.
func (s *Syncer) resolveDocument(name, title string, refs []*docRef) *docRef {
	canonical := name + ".md"
	for _, ref := range refs {
		if !ref.claimed && ref.file == canonical {
			return ref
		}
	}

	var (
		best      *docRef
		bestScore float64
	)
	for _, ref := range refs {
		if ref.claimed || ref.file == "" {
			continue
		}
		docTitle := ref.doc.Title
		if docTitle == "" {
			docTitle = strings.TrimSuffix(ref.file, ".md")
		}
		if score := Similarity(title, docTitle); score >= matchThreshold && score > bestScore {
			best, bestScore = ref, score
		}
	}
	if best == nil {
		return nil
	}

	// Custom-metadata documents keep their name.
	if best.file != canonical && !best.doc.CustomMetadata {
		if err := s.store.Rename(s.docPath(best.file), s.docPath(canonical)); err != nil {
			s.logger.Printf("rename %s to %s: %v", best.file, canonical, err)
		} else {
			best.file = canonical
		}
	}
	return best
}

// unchanged reports whether the stored document already reflects the book.
// The caller additionally requires metadata to have been attempted before
// skipping, so a book whose lookup failed last pass is retried.
func (s *Syncer) unchanged(book *entities.Book, doc *PersistedDocument, hash string) bool {
	// a renamed book regenerates so the header title follows the file
	if doc.Title != "" && doc.Title != book.Title {
		return false
	}

	if doc.Hash != "" {
		if doc.Hash != hash {
			return false
		}
	} else if doc.Highlights != len(book.Highlights) {
		// legacy document without a hash
		return false
	}

	if s.cfg.Display.ShowProgress && book.HasProgress {
		if !doc.HasProgress || doc.Progress != book.Progress {
			return false
		}
		lastRead := ""
		if book.LastReadMs != 0 {
			lastRead = book.LastRead().Format("2006-01-02")
		}
		if doc.LastRead != lastRead {
			return false
		}
	}
	return true
}

// renderPreserved rebuilds a manual or custom-metadata document: the body
// is carried over verbatim with only the generated highlights block
// replaced. Custom-metadata documents additionally keep their own header
// values, with only the sync-owned fields rewritten.
func (s *Syncer) renderPreserved(book *entities.Book, ref *docRef, state render.DocumentState) string {
	body := ref.doc.BodyWithoutHighlights() + s.renderer.HighlightsSection(book)

	if ref.doc.CustomMetadata {
		original, err := s.store.Read(s.docPath(ref.file))
		if err == nil {
			if header, ok := headerBlock(original); ok {
				return UpdateHeaderFields(header, syncOwnedFields(book, state)) + body
			}
		}
	}
	return s.renderer.Header(book, state) + body
}

// ensureCover makes sure the cover image exists on disk and returns its
// vault-relative reference, or empty when there is none.
func (s *Syncer) ensureCover(ctx context.Context, book *entities.Book, name string) string {
	if s.covers == nil || !s.cfg.Metadata.FetchCovers {
		return ""
	}

	rel := path.Join(s.cfg.Metadata.CoversDir, name+".jpg")
	if s.covers.Has(name) {
		return rel
	}
	if book.Metadata.CoverURL == "" {
		return ""
	}
	if _, err := s.covers.Download(ctx, book.Metadata.CoverURL, name); err != nil {
		s.logger.Printf("cover %q: %v", book.Title, err)
		return ""
	}
	return rel
}

// reconcileCustom fetches metadata for documents no book record claimed:
// user-created books added directly in the vault. Fetched bibliographic
// fields are written into the document's header. Documents flagged as
// custom-metadata are left alone, as is anything already attempted.
func (s *Syncer) reconcileCustom(ctx context.Context, refs []*docRef, result *Result) {
	if s.metadata == nil {
		return
	}

	for _, ref := range refs {
		if ref.claimed || ref.doc.CustomMetadata {
			continue
		}
		title := ref.doc.Title
		if title == "" {
			title = strings.TrimSuffix(ref.file, ".md")
		}
		if title == "" || s.metadata.Attempted(title, ref.doc.Author) {
			continue
		}
		md, err := s.metadata.Lookup(ctx, title, ref.doc.Author)
		if err != nil {
			s.logger.Printf("metadata lookup %q: %v", title, err)
			continue
		}
		if md == nil || md.IsZero() {
			continue
		}
		if err := s.applyCustomMetadata(ref, *md, result); err != nil {
			s.logger.Printf("update %s: %v", ref.file, err)
		}
	}
}

// applyCustomMetadata rewrites the bibliographic header fields of an
// unclaimed document in place. The body and any user-authored header
// values stay byte-for-byte; a document without frontmatter is fully
// user-owned and stays untouched.
func (s *Syncer) applyCustomMetadata(ref *docRef, md entities.BookMetadata, result *Result) error {
	pairs := s.renderer.MetadataFields(md)
	if len(pairs) == 0 {
		return nil
	}
	fields := make([]HeaderField, 0, len(pairs))
	for _, p := range pairs {
		fields = append(fields, HeaderField{Key: p[0], Value: p[1]})
	}

	original, err := s.store.Read(s.docPath(ref.file))
	if err != nil {
		return err
	}
	header, ok := headerBlock(original)
	if !ok {
		return nil
	}

	updated := UpdateHeaderFields(header, fields) + original[len(header):]
	if updated == original {
		return nil
	}
	if err := s.store.Write(s.docPath(ref.file), updated); err != nil {
		return err
	}
	result.Updated++
	return nil
}

func (s *Syncer) readDocuments() ([]*docRef, error) {
	names, err := s.store.List(s.cfg.BooksDir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var refs []*docRef
	for _, name := range names {
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		content, err := s.store.Read(s.docPath(name))
		if err != nil {
			s.logger.Printf("read document %s: %v", name, err)
			continue
		}
		refs = append(refs, &docRef{file: name, doc: ParseDocument(content)})
	}
	return refs, nil
}

// prefetch warms the metadata cache with a small concurrent pool before
// the sequential book loop.
func (s *Syncer) prefetch(ctx context.Context, books []*entities.Book) {
	if s.metadata == nil {
		return
	}

	sem := make(chan struct{}, prefetchFanout)
	var wg gosync.WaitGroup
	for _, book := range books {
		if s.metadata.Attempted(book.Title, book.Author) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(title, author string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := s.metadata.Lookup(ctx, title, author); err != nil {
				s.logger.Printf("prefetch %q: %v", title, err)
			}
		}(book.Title, book.Author)
	}
	wg.Wait()
}

func (s *Syncer) writeIndex(entries []render.IndexEntry) error {
	if err := s.store.Write(s.cfg.IndexFile, s.renderer.Index(entries, s.now())); err != nil {
		return err
	}
	return s.store.Write(s.cfg.BaseFile, s.renderer.BaseView(s.cfg.BooksDir))
}

func (s *Syncer) indexEntry(book *entities.Book, file, name string) *render.IndexEntry {
	entry := &render.IndexEntry{
		Book:     book,
		FileName: strings.TrimSuffix(file, ".md"),
	}
	if s.cfg.Metadata.FetchCovers && s.covers != nil && s.covers.Has(name) {
		entry.CoverPath = path.Join(s.cfg.Metadata.CoversDir, name+".jpg")
	}
	return entry
}

func (s *Syncer) docPath(file string) string {
	return path.Join(s.cfg.BooksDir, file)
}

// customBook wraps an unclaimed document's header fields as a minimal
// record for index rendering.
func customBook(ref *docRef) *entities.Book {
	title := ref.doc.Title
	if title == "" {
		title = strings.TrimSuffix(ref.file, ".md")
	}
	return &entities.Book{Title: title, Author: ref.doc.Author}
}

// syncOwnedFields lists the header fields the synchronizer owns even in
// custom-metadata documents, in emission order.
func syncOwnedFields(book *entities.Book, state render.DocumentState) []HeaderField {
	fields := []HeaderField{
		{Key: "last-synced", Value: state.LastSynced.Format("2006-01-02 15:04:05")},
		{Key: "highlights", Value: fmt.Sprintf("%d", len(book.Highlights))},
		{Key: "notes", Value: fmt.Sprintf("%d", book.NoteCount())},
		{Key: "highlights-hash", Value: state.Hash},
	}
	if book.HasProgress {
		fields = append(fields, HeaderField{Key: "progress", Value: render.FormatProgress(book.Progress)})
		fields = append(fields, HeaderField{Key: "chapter", Value: fmt.Sprintf("%d", book.Chapter)})
		if book.LastReadMs != 0 {
			fields = append(fields, HeaderField{Key: "last-read", Value: book.LastRead().Format("2006-01-02")})
		}
	}
	return fields
}
