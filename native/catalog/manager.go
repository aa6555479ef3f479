package catalog

import (
	"sync"

	"lukechampine.com/blake3"
)

// ManagerInfo is the publish-time metadata a content manager reports about the
// content it guards. The fingerprint is the digest of the raw content bytes
// and is the system-wide publish-once deduplication key.
type ManagerInfo struct {
	Author      [20]byte
	Title       string
	Genre       uint64
	Fingerprint [32]byte
}

// ContentManager is the narrow capability interface the catalog consumes from
// the external collaborator that stores content bytes and enforces
// per-consumer grants. Both calls happen inline within a catalog operation;
// a GrantAccess failure aborts the whole operation.
type ContentManager interface {
	Info() (ManagerInfo, error)
	GrantAccess(account [20]byte, until int64) error
}

// ManagerResolver maps a content reference to the collaborator behind it.
type ManagerResolver interface {
	Manager(ref [20]byte) (ContentManager, bool)
}

// Fingerprint computes the content digest used for publish-once deduplication.
func Fingerprint(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// StaticManager is an in-process ContentManager backed by fixed metadata and
// content bytes. It serves local deployments and tests; production
// collaborators live behind the RPC manager client.
type StaticManager struct {
	author [20]byte
	title  string
	genre  uint64
	digest [32]byte

	mu     sync.Mutex
	grants map[[20]byte]int64
}

// NewStaticManager constructs a static manager whose fingerprint is derived
// from the supplied content bytes.
func NewStaticManager(author [20]byte, title string, genre uint64, body []byte) *StaticManager {
	return &StaticManager{
		author: author,
		title:  title,
		genre:  genre,
		digest: Fingerprint(body),
		grants: make(map[[20]byte]int64),
	}
}

// Info implements the ContentManager interface.
func (m *StaticManager) Info() (ManagerInfo, error) {
	return ManagerInfo{
		Author:      m.author,
		Title:       m.title,
		Genre:       m.genre,
		Fingerprint: m.digest,
	}, nil
}

// GrantAccess implements the ContentManager interface. Grants are idempotent
// per account; a later expiry extends the stored one.
func (m *StaticManager) GrantAccess(account [20]byte, until int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.grants[account]; !ok || until > existing {
		m.grants[account] = until
	}
	return nil
}

// GrantedUntil reports the expiry of an account's grant, zero when absent.
func (m *StaticManager) GrantedUntil(account [20]byte) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grants[account]
}
