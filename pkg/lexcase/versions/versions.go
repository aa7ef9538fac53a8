// Package versions keeps an append-only history of the text stored for
// each document.
package versions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
)

// ProcessorVersion identifies the pipeline release that produced a version.
const ProcessorVersion = "1.0.0"

// Change notes recorded when no explicit note is given.
const (
	ChangeInitial   = "initial version"
	ChangeContent   = "content changed"
	ChangeUnchanged = "content unchanged"
)

// Version is one recorded state of a document's text.
type Version struct {
	ID               string    `json:"version_id"`
	DocID            string    `json:"doc_id"`
	Timestamp        time.Time `json:"timestamp"`
	Hash             string    `json:"hash"`
	Changes          string    `json:"changes"`
	ProcessorVersion string    `json:"processor_version"`
}

// Store persists versions. Put must reject an existing version id with
// internalerr.ErrDuplicate. Delete of a missing version is not an error.
type Store interface {
	Put(ctx context.Context, v Version, text string) error
	Get(ctx context.Context, docID, versionID string) (Version, string, error)
	List(ctx context.Context, docID string) ([]Version, error)
	Delete(ctx context.Context, docID, versionID string) error
}

// Hash returns the hex SHA-256 digest of text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Sort orders versions by timestamp, then id.
func Sort(vs []Version) {
	sort.SliceStable(vs, func(i, j int) bool {
		if !vs[i].Timestamp.Equal(vs[j].Timestamp) {
			return vs[i].Timestamp.Before(vs[j].Timestamp)
		}
		return vs[i].ID < vs[j].ID
	})
}

// Manager creates versions and writes them to a Store.
type Manager struct {
	store Store
	now   func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy

	docMu sync.Map // docID -> *sync.Mutex
}

// NewManager creates a Manager over store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:   store,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Record stores text as a new version of docID. An empty changes note is
// filled in by comparing against the latest stored version.
func (m *Manager) Record(ctx context.Context, docID, text, changes string) (Version, error) {
	if docID == "" {
		return Version{}, fmt.Errorf("record version: empty doc id: %w", internalerr.ErrInvalidInput)
	}

	lock := m.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	hash := Hash(text)
	if changes == "" {
		existing, err := m.store.List(ctx, docID)
		if err != nil {
			return Version{}, fmt.Errorf("list versions: %w", err)
		}
		switch {
		case len(existing) == 0:
			changes = ChangeInitial
		case existing[len(existing)-1].Hash == hash:
			changes = ChangeUnchanged
		default:
			changes = ChangeContent
		}
	}

	now := m.now().UTC()
	v := Version{
		ID:               m.newID(now),
		DocID:            docID,
		Timestamp:        now,
		Hash:             hash,
		Changes:          changes,
		ProcessorVersion: ProcessorVersion,
	}
	if err := m.store.Put(ctx, v, text); err != nil {
		return Version{}, fmt.Errorf("put version: %w", err)
	}
	return v, nil
}

// Discard removes a version recorded by a run that did not complete.
// History is otherwise append-only.
func (m *Manager) Discard(ctx context.Context, v Version) error {
	lock := m.docLock(v.DocID)
	lock.Lock()
	defer lock.Unlock()
	if err := m.store.Delete(ctx, v.DocID, v.ID); err != nil {
		return fmt.Errorf("discard version %s: %w", v.ID, err)
	}
	return nil
}

// Versions returns the history of docID, oldest first.
func (m *Manager) Versions(ctx context.Context, docID string) ([]Version, error) {
	vs, err := m.store.List(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	Sort(vs)
	return vs, nil
}

// Text returns the stored text of one version.
func (m *Manager) Text(ctx context.Context, docID, versionID string) (string, error) {
	_, text, err := m.store.Get(ctx, docID, versionID)
	if err != nil {
		return "", fmt.Errorf("get version: %w", err)
	}
	return text, nil
}

func (m *Manager) newID(t time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), m.entropy).String()
}

func (m *Manager) docLock(docID string) *sync.Mutex {
	l, _ := m.docMu.LoadOrStore(docID, &sync.Mutex{})
	return l.(*sync.Mutex)
}
