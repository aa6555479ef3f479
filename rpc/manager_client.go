package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"catalogchain/native/catalog"
)

const managerCallTimeout = 5 * time.Second

// HTTPManager adapts a remote content-manager collaborator to the
// catalog.ContentManager interface. The collaborator serves two endpoints:
// GET /info returns the publication metadata, POST /grants records an access
// grant and answers non-2xx to reject it.
type HTTPManager struct {
	base   string
	client *http.Client
}

// NewHTTPManager validates the collaborator base URL and builds the client.
func NewHTTPManager(base string) (*HTTPManager, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported manager url scheme %q", parsed.Scheme)
	}
	return &HTTPManager{
		base:   trimmed,
		client: &http.Client{Timeout: managerCallTimeout},
	}, nil
}

type managerInfoPayload struct {
	Author      string `json:"author"`
	Title       string `json:"title"`
	Genre       uint64 `json:"genre"`
	Fingerprint string `json:"fingerprint"`
}

type managerGrantPayload struct {
	Account string `json:"account"`
	Until   int64  `json:"until"`
}

// Info implements the catalog.ContentManager interface.
func (m *HTTPManager) Info() (catalog.ManagerInfo, error) {
	var info catalog.ManagerInfo
	resp, err := m.client.Get(m.base + "/info")
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("manager info returned status %d", resp.StatusCode)
	}
	var payload managerInfoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return info, err
	}
	author, err := decodeBech32(payload.Author)
	if err != nil {
		return info, fmt.Errorf("manager reported invalid author: %w", err)
	}
	digest, err := hex.DecodeString(strings.TrimPrefix(payload.Fingerprint, "0x"))
	if err != nil || len(digest) != 32 {
		return info, fmt.Errorf("manager reported invalid fingerprint %q", payload.Fingerprint)
	}
	info.Author = author
	info.Title = payload.Title
	info.Genre = payload.Genre
	copy(info.Fingerprint[:], digest)
	return info, nil
}

// GrantAccess implements the catalog.ContentManager interface.
func (m *HTTPManager) GrantAccess(account [20]byte, until int64) error {
	payload, err := json.Marshal(managerGrantPayload{
		Account: formatAddress(account),
		Until:   until,
	})
	if err != nil {
		return err
	}
	resp, err := m.client.Post(m.base+"/grants", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("manager rejected grant with status %d", resp.StatusCode)
	}
	return nil
}
