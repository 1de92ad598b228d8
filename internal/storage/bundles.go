package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"stylebench/internal/domain"
)

// BundleStore persists result bundles as JSON documents under a stable,
// per-result path. Saves are idempotent overwrites; because every write goes
// through WriteAtomic, a reader polling the file mid-run always sees a
// complete document.
type BundleStore struct {
	files *FileStore
}

// NewBundleStore wraps a FileStore for bundle persistence.
func NewBundleStore(files *FileStore) *BundleStore {
	return &BundleStore{files: files}
}

// Key returns the storage key a result bundle lives under.
func (b *BundleStore) Key(resultID string) string {
	return fmt.Sprintf("results/%s/bundle.json", resultID)
}

// Save marshals and atomically replaces the bundle document for resultID.
func (b *BundleStore) Save(ctx context.Context, resultID string, bundle *domain.ResultBundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal bundle: %w", err)
	}
	if _, err := b.files.WriteAtomic(ctx, b.Key(resultID), data); err != nil {
		return fmt.Errorf("storage: save bundle: %w", err)
	}
	return nil
}

// Load reads and decodes the bundle document for resultID.
func (b *BundleStore) Load(ctx context.Context, resultID string) (*domain.ResultBundle, error) {
	data, err := b.files.Read(ctx, b.Key(resultID))
	if err != nil {
		return nil, err
	}
	var bundle domain.ResultBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("storage: decode bundle: %w", err)
	}
	return &bundle, nil
}
