package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/chain"
)

var (
	// ErrEmptySessionID is returned when an export names no session.
	ErrEmptySessionID = errors.New("audit: session id must not be empty")
	// ErrLedgerNotConfigured is returned when export is invoked without a ledger.
	ErrLedgerNotConfigured = errors.New("audit: ledger not configured (fail-closed)")
)

// Manifest describes an evidence pack.
type Manifest struct {
	SessionID    string             `json:"session_id"`
	GeneratedAt  time.Time          `json:"generated_at"`
	EventCount   int                `json:"event_count"`
	ChainHead    string             `json:"chain_head"`
	Hasher       string             `json:"hasher"`
	Verification chain.Verification `json:"verification"`
}

// Exporter bundles a session ledger into a zip evidence pack.
type Exporter struct {
	ledger *Ledger
	clock  func() time.Time
}

func NewExporter(l *Ledger) *Exporter {
	return &Exporter{ledger: l, clock: time.Now}
}

// GeneratePack creates a zip containing events.json, manifest.json and a
// README, and returns it with the SHA-256 checksum of the archive. The pack
// is produced even when the chain does not verify; the manifest records
// where it breaks.
func (e *Exporter) GeneratePack(ctx context.Context, sessionID string) ([]byte, string, error) {
	if sessionID == "" {
		return nil, "", ErrEmptySessionID
	}
	if e.ledger == nil {
		return nil, "", ErrLedgerNotConfigured
	}

	events := e.ledger.Events()
	verification, err := e.ledger.Verify(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("audit: verify before export: %w", err)
	}

	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal events: %w", err)
	}

	generatedAt := e.clock().UTC()
	manifest := Manifest{
		SessionID:    sessionID,
		GeneratedAt:  generatedAt,
		EventCount:   len(events),
		ChainHead:    e.ledger.Head(),
		Hasher:       e.ledger.log.Hasher().Name(),
		Verification: verification,
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	files := []struct {
		name string
		body []byte
	}{
		{"events.json", eventsJSON},
		{"manifest.json", manifestJSON},
		{"README.txt", []byte(fmt.Sprintf("Evidence pack for session %s\nGenerated at %s\n", sessionID, generatedAt.Format(time.RFC3339)))},
	}
	for _, file := range files {
		f, err := w.Create(file.name)
		if err != nil {
			return nil, "", err
		}
		if _, err := f.Write(file.body); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	hash := sha256.Sum256(zipBytes)
	return zipBytes, hex.EncodeToString(hash[:]), nil
}

// ReadPack extracts the events and manifest from an evidence pack.
func ReadPack(pack []byte) ([]Event, Manifest, error) {
	var (
		events   []Event
		manifest Manifest
	)
	r, err := zip.NewReader(bytes.NewReader(pack), int64(len(pack)))
	if err != nil {
		return nil, manifest, fmt.Errorf("audit: open pack: %w", err)
	}
	for _, f := range r.File {
		var target interface{}
		switch f.Name {
		case "events.json":
			target = &events
		case "manifest.json":
			target = &manifest
		default:
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, manifest, err
		}
		err = json.NewDecoder(rc).Decode(target)
		_ = rc.Close()
		if err != nil {
			return nil, manifest, fmt.Errorf("audit: decode %s: %w", f.Name, err)
		}
	}
	return events, manifest, nil
}
