package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/confmesh-go/internal/core/domain"
	"github.com/yndnr/confmesh-go/internal/storage/codec"
	"github.com/yndnr/confmesh-go/internal/telemetry/logger"
)

// Backend key layout.
const (
	ManifestKey = "manifest"
	ImagePrefix = "ns/"
)

// ImageKey returns the backend key holding the image of namespace name.
// The default namespace is stored at ImagePrefix itself.
func ImageKey(name string) string {
	return ImagePrefix + name
}

// Manifest describes the last commit.
type Manifest struct {
	ID          string   `json:"id"`
	CommittedAt int64    `json:"committed_at"` // unix milliseconds
	Namespaces  []string `json:"namespaces"`
}

type image struct {
	name    string
	entries []domain.Entry
}

// ============================================================================
// Commit
// ============================================================================

// Commit writes every non-empty namespace as a binary image, erases images
// of namespaces that became empty, writes the manifest and commits the
// backend. Encrypted entries are persisted as ciphertext.
func (m *Manager) Commit(ctx context.Context) error {
	return m.record("commit", m.commit(ctx, "commit"))
}

func (m *Manager) commit(ctx context.Context, trigger string) error {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	m.mu.Lock()
	if err := m.checkInit(); err != nil {
		m.mu.Unlock()
		return err
	}
	backend := m.backend
	limiter := m.limiter
	m.mu.Unlock()
	if backend == nil {
		return domain.ErrInvalidParameter.WithDetails("no backend installed")
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return domain.ErrBackend.WithCause(err).WithDetails("commit throttled")
		}
	}

	// Snapshot after throttling so the newest state is written.
	m.mu.Lock()
	if err := m.checkInit(); err != nil {
		m.mu.Unlock()
		return err
	}
	images := m.snapshotImages()
	m.mu.Unlock()

	start := time.Now()
	man, err := writeImages(ctx, backend, images)
	m.metrics.ObserveCommit(start, err)

	log := logger.FromContext(ctx, m.logger)
	if err != nil {
		log.Error("commit failed", "trigger", trigger, "error", err)
		return err
	}
	log.Info("configuration committed",
		"trigger", trigger,
		"commit_id", man.ID,
		"namespaces", len(man.Namespaces),
		"duration", time.Since(start))
	return nil
}

// snapshotImages copies every namespace holding entries. Caller holds m.mu.
func (m *Manager) snapshotImages() []image {
	ids := m.store.Namespaces()
	images := make([]image, 0, len(ids))
	for _, id := range ids {
		images = append(images, image{
			name:    m.namespaces.nameOf(id),
			entries: m.store.Snapshot(id),
		})
	}
	return images
}

func writeImages(ctx context.Context, b Backend, images []image) (Manifest, error) {
	prev, _, err := readManifest(ctx, b)
	if err != nil {
		return Manifest{}, err
	}

	man := Manifest{
		ID:          ulid.Make().String(),
		CommittedAt: time.Now().UnixMilli(),
		Namespaces:  make([]string, 0, len(images)),
	}
	live := make(map[string]struct{}, len(images))
	for _, img := range images {
		data, err := codec.Encode(codec.FormatBinary, img.entries, 0)
		if err != nil {
			return Manifest{}, err
		}
		if err := b.Write(ctx, ImageKey(img.name), data); err != nil {
			return Manifest{}, backendError(err)
		}
		live[img.name] = struct{}{}
		man.Namespaces = append(man.Namespaces, img.name)
	}

	for _, name := range prev.Namespaces {
		if _, ok := live[name]; ok {
			continue
		}
		if err := b.Erase(ctx, ImageKey(name)); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return Manifest{}, backendError(err)
		}
	}

	raw, err := json.Marshal(man)
	if err != nil {
		return Manifest{}, domain.ErrInvalidFormat.WithCause(err)
	}
	if err := b.Write(ctx, ManifestKey, raw); err != nil {
		return Manifest{}, backendError(err)
	}
	if err := b.Commit(ctx); err != nil {
		return Manifest{}, backendError(err)
	}
	return man, nil
}

// readManifest returns the stored manifest; found is false when none exists.
func readManifest(ctx context.Context, b Backend) (man Manifest, found bool, err error) {
	raw, err := b.Read(ctx, ManifestKey)
	if errors.Is(err, domain.ErrNotFound) {
		return Manifest{}, false, nil
	}
	if err != nil {
		return Manifest{}, false, backendError(err)
	}
	if err := json.Unmarshal(raw, &man); err != nil {
		return Manifest{}, false, domain.ErrInvalidFormat.WithCause(err).WithDetails("unreadable manifest")
	}
	return man, true, nil
}

// ============================================================================
// Load
// ============================================================================

// Load reads the last committed images and merges them into the store:
// stored keys overwrite live ones, other live keys are kept. Namespaces are
// created as needed. The load is applied atomically; if the images do not
// fit nothing changes. Callbacks are not invoked.
func (m *Manager) Load(ctx context.Context) error {
	return m.record("load", m.load(ctx))
}

func (m *Manager) load(ctx context.Context) error {
	m.mu.Lock()
	if err := m.checkInit(); err != nil {
		m.mu.Unlock()
		return err
	}
	backend := m.backend
	m.mu.Unlock()
	if backend == nil {
		return domain.ErrInvalidParameter.WithDetails("no backend installed")
	}

	man, found, err := readManifest(ctx, backend)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound.WithDetails("no committed configuration")
	}

	images := make([]image, 0, len(man.Namespaces))
	for _, name := range man.Namespaces {
		raw, err := backend.Read(ctx, ImageKey(name))
		if err != nil {
			return backendError(err)
		}
		entries, err := codec.Decode(codec.FormatBinary, raw, 0)
		if err != nil {
			return fmt.Errorf("namespace %q image: %w", name, err)
		}
		images = append(images, image{name: name, entries: entries})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return err
	}
	if err := m.checkFits(images); err != nil {
		return err
	}

	total := 0
	for _, img := range images {
		n, err := m.apply(img.name != "", img.name, img.entries, false, false)
		if err != nil {
			return err
		}
		total += n
	}

	logger.FromContext(ctx, m.logger).Info("configuration loaded",
		"commit_id", man.ID,
		"namespaces", len(images),
		"entries", total)
	return nil
}

// checkFits validates every image and verifies the merge stays within the
// entry and namespace budgets. Caller holds m.mu.
func (m *Manager) checkFits(images []image) error {
	newNamespaces, newEntries := 0, 0
	for _, img := range images {
		id, exists := domain.DefaultNamespace, true
		if img.name != "" {
			if err := m.validateNamespaceName(img.name); err != nil {
				return domain.ErrInvalidFormat.WithCause(err)
			}
			var slot *namespaceSlot
			if slot, exists = m.namespaces.lookup(img.name); exists {
				id = slot.id
			} else {
				newNamespaces++
			}
		}
		for _, e := range img.entries {
			if err := m.validateImported(e); err != nil {
				return domain.ErrInvalidFormat.WithCause(err).WithDetails(fmt.Sprintf("entry %q rejected", e.Key))
			}
			if !exists || !m.store.Has(id, e.Key) {
				newEntries++
			}
		}
	}
	if newNamespaces > m.namespaces.free() {
		return domain.ErrCapacityExceeded.WithDetails(fmt.Sprintf("load needs %d new namespaces", newNamespaces))
	}
	if newEntries > m.store.Free() {
		return domain.ErrCapacityExceeded.WithDetails(fmt.Sprintf("load needs %d new entries, %d free", newEntries, m.store.Free()))
	}
	return nil
}
