package rendering

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jonathan/content-publisher/internal/blob"
	"github.com/jonathan/content-publisher/internal/types"
)

const (
	// ContentRoot is the storage prefix for every published page
	ContentRoot = "published_content"
	// IndexPath is the storage path of the published index
	IndexPath = ContentRoot + "/published_index.json"

	htmlContentType = "text/html"
	jsonContentType = "application/json"
)

//go:embed templates/base.html
var templateFS embed.FS

var baseTemplate = template.Must(template.ParseFS(templateFS, "templates/base.html"))

// sectionFolders maps sections whose storage folder differs from their name
var sectionFolders = map[string]string{
	types.SectionBio: "website",
}

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	apostrophes  = strings.NewReplacer("'", "", "’", "")
)

// MetadataStore records the storage path on the content record after upload.
// The stored metadata is re-read so entries written earlier in the run survive.
type MetadataStore interface {
	GetPublishMetadata(ctx context.Context, id string) (*types.PublishMetadata, error)
	UpdatePublishMetadata(ctx context.Context, id string, meta types.PublishMetadata) error
}

// Options configures a ContentStorage
type Options struct {
	IsDryRun  bool
	OutputDir string // local mirror root
	Metadata  MetadataStore
	Logger    *slog.Logger
	Clock     func() time.Time
}

// ContentStorage renders pages into the base template and uploads them
type ContentStorage struct {
	store    blob.Store
	isDryRun bool
	outDir   string
	metadata MetadataStore
	logger   *slog.Logger
	now      func() time.Time
}

// IndexEntry is one record of published_index.json
type IndexEntry struct {
	Slug        string    `json:"slug"`
	Section     string    `json:"section"`
	Platforms   []string  `json:"platforms"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	StoragePath string    `json:"storage_path"`
}

// PublishedObject describes one stored page
type PublishedObject struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

type pageData struct {
	Title       string
	Section     string
	Slug        string
	PublishDate string
	Content     template.HTML
}

// NewContentStorage returns a ContentStorage writing to store
func NewContentStorage(store blob.Store, opts Options) *ContentStorage {
	s := &ContentStorage{
		store:    store,
		isDryRun: opts.IsDryRun,
		outDir:   opts.OutputDir,
		metadata: opts.Metadata,
		logger:   opts.Logger,
		now:      opts.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Slugify converts a title into a lowercase, hyphen-separated slug.
// Empty results become "untitled".
func Slugify(title string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		apostrophes.Replace(strings.ToLower(title)),
	)
	if err != nil {
		folded = strings.ToLower(title)
	}
	slug := strings.Trim(nonSlugChars.ReplaceAllString(folded, "-"), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// SectionFolder returns the storage folder for a section
func SectionFolder(section string) string {
	if folder, ok := sectionFolders[section]; ok {
		return folder
	}
	return section
}

// StoragePath returns published_content/<folder>/<slug>.html for an item
func StoragePath(item types.ContentItem) string {
	return path.Join(ContentRoot, SectionFolder(item.Section), Slugify(item.DisplayTitle())+".html")
}

// indexed reports whether a section is listed in the published index
func indexed(section string) bool {
	return section == types.SectionBlog || section == types.SectionBio
}

// RenderPage wraps an HTML fragment in the base page template
func (s *ContentStorage) RenderPage(item types.ContentItem, fragment string) (string, error) {
	data := pageData{
		Title:       item.DisplayTitle(),
		Section:     item.Section,
		Slug:        Slugify(item.DisplayTitle()),
		PublishDate: s.now().UTC().Format(time.RFC3339),
		// fragment comes from the markdown renderer, which omits raw HTML
		Content: template.HTML(fragment), //nolint:gosec
	}

	var sb strings.Builder
	if err := baseTemplate.Execute(&sb, data); err != nil {
		return "", &TemplateError{Message: "failed to execute base template", Cause: err}
	}
	return sb.String(), nil
}

// StoreRenderedContent wraps html in the page template and stores it at the
// item's storage path, which it returns. In dry-run nothing is written.
func (s *ContentStorage) StoreRenderedContent(ctx context.Context, item types.ContentItem, html string) (string, error) {
	storagePath := StoragePath(item)
	if strings.TrimSpace(html) == "" {
		return "", &RenderError{Message: fmt.Sprintf("rendered content for %s is empty", item.ID)}
	}

	page, err := s.RenderPage(item, html)
	if err != nil {
		return "", err
	}

	if s.isDryRun {
		s.logger.Info("dry run: would upload rendered content", "content_id", item.ID, "path", storagePath)
		return storagePath, nil
	}

	if err := s.writeLocal(storagePath, []byte(page)); err != nil {
		return "", err
	}

	stored, err := s.store.Upload(ctx, storagePath, []byte(page), htmlContentType, true)
	if err != nil {
		return "", &StorageError{Message: "failed to upload rendered content", Path: storagePath, Cause: err}
	}

	if s.metadata != nil {
		if err := s.recordStoragePath(ctx, item, stored); err != nil {
			return "", err
		}
	}

	if indexed(item.Section) {
		if err := s.updatePublishedIndex(ctx, item, stored); err != nil {
			return "", err
		}
	}

	s.logger.Debug("stored rendered content", "content_id", item.ID, "path", stored)
	return stored, nil
}

func (s *ContentStorage) recordStoragePath(ctx context.Context, item types.ContentItem, stored string) error {
	current, err := s.metadata.GetPublishMetadata(ctx, item.ID)
	if err != nil {
		return &StorageError{Message: "failed to read publish metadata", Path: stored, Cause: err}
	}
	meta := item.PublishMetadata
	if current != nil {
		meta = *current
	}
	meta.StoragePath = stored
	published := s.now().UTC()
	meta.LastPublished = &published
	if err := s.metadata.UpdatePublishMetadata(ctx, item.ID, meta); err != nil {
		return &StorageError{Message: "failed to record storage path", Path: stored, Cause: err}
	}
	return nil
}

func (s *ContentStorage) writeLocal(storagePath string, data []byte) error {
	if s.outDir == "" {
		return nil
	}
	localPath := filepath.Join(s.outDir, filepath.FromSlash(storagePath))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return &StorageError{Message: "failed to create local directory", Path: localPath, Cause: err}
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return &StorageError{Message: "failed to write local copy", Path: localPath, Cause: err}
	}
	return nil
}

// PublishedIndex reads published_index.json from storage. A missing index is empty.
func (s *ContentStorage) PublishedIndex(ctx context.Context) ([]IndexEntry, error) {
	raw, err := s.store.Download(ctx, IndexPath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil
		}
		return nil, &StorageError{Message: "failed to download published index", Path: IndexPath, Cause: err}
	}

	var entries []IndexEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &StorageError{Message: "failed to decode published index", Path: IndexPath, Cause: err}
	}
	return entries, nil
}

func (s *ContentStorage) updatePublishedIndex(ctx context.Context, item types.ContentItem, storagePath string) error {
	entries, err := s.PublishedIndex(ctx)
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.StoragePath != storagePath {
			kept = append(kept, e)
		}
	}
	platforms := item.Platforms
	if platforms == nil {
		platforms = []string{}
	}
	kept = append(kept, IndexEntry{
		Slug:        Slugify(item.DisplayTitle()),
		Section:     item.Section,
		Platforms:   platforms,
		Title:       item.DisplayTitle(),
		PublishedAt: s.now().UTC(),
		StoragePath: storagePath,
	})

	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return &StorageError{Message: "failed to encode published index", Path: IndexPath, Cause: err}
	}
	if err := s.writeLocal(IndexPath, data); err != nil {
		return err
	}
	if _, err := s.store.Upload(ctx, IndexPath, data, jsonContentType, true); err != nil {
		return &StorageError{Message: "failed to upload published index", Path: IndexPath, Cause: err}
	}
	return nil
}

// GetPublishedContent lists the stored pages of a section
func (s *ContentStorage) GetPublishedContent(ctx context.Context, section string) ([]PublishedObject, error) {
	prefix := path.Join(ContentRoot, SectionFolder(section))
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list published content: %w", err)
	}

	var out []PublishedObject
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Name, ".html") {
			continue
		}
		out = append(out, PublishedObject{
			Path:    path.Join(prefix, obj.Name),
			Name:    obj.Name,
			Size:    obj.Size,
			Created: obj.CreatedAt,
		})
	}
	return out, nil
}
