package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository of flow documents to ports.FlowLoader.
type Loader struct {
	Repo *loam.TypedRepository[FlowMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[FlowMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only, strict Loam repository at path and wraps it.
// Strict mode makes every adapter return json.Number for numerics, so
// positions and revisions decode the same from JSON, YAML and Markdown.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[FlowMetadata](repo)), nil
}

// Entry is a flow document with its library metadata.
type Entry struct {
	ID          string
	Title       string
	Description string
	Flow        domain.Flow
}

// GetFlow retrieves a flow by its normalized id (file name without extension,
// unless the document declares its own id).
func (l *Loader) GetFlow(ctx context.Context, id string) (domain.Flow, error) {
	entry, err := l.Get(ctx, id)
	if err != nil {
		return domain.Flow{}, err
	}
	return entry.Flow, nil
}

// Get retrieves a flow together with its title and description.
func (l *Loader) Get(ctx context.Context, id string) (Entry, error) {
	id = trimExtension(id)

	// Loam resolves "welcome" to welcome.md or welcome.json on its own.
	if doc, err := l.Repo.Get(ctx, id); err == nil && docID(doc.ID, doc.Data) == id {
		return decodeEntry(id, doc.Data, doc.Content)
	}

	// Documents may declare an id that differs from their file name.
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("loam list failed: %w", err)
	}
	for _, doc := range docs {
		if docID(doc.ID, doc.Data) == id {
			return decodeEntry(id, doc.Data, doc.Content)
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
}

func decodeEntry(id string, meta FlowMetadata, content string) (Entry, error) {
	flow, err := meta.Raw().Decode()
	if err != nil {
		return Entry{}, fmt.Errorf("invalid flow %s: %w", id, err)
	}
	return Entry{
		ID:          id,
		Title:       meta.Title,
		Description: strings.TrimSpace(content),
		Flow:        flow,
	}, nil
}

// ListFlows lists the ids of all flow documents in the repository.
func (l *Loader) ListFlows(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))

	for _, doc := range docs {
		id := docID(doc.ID, doc.Data)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// docID prefers the id declared in the document over the file name.
func docID(fileID string, meta FlowMetadata) string {
	rawID := meta.ID
	if rawID == "" {
		rawID = fileID
	}
	return trimExtension(rawID)
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
