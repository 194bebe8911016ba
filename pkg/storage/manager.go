// Package storage owns the output directory: the dedup index over
// already-downloaded post ids, in-process claims that serialize workers
// racing on one id, and artifact/sidecar writes.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	errs "boorufetch/pkg/errors"
)

// SidecarExt is the extension of per-artifact sidecar files.
const SidecarExt = ".txt"

// tempExt marks in-progress writes; writeAtomic renames it away on
// success.
const tempExt = ".tmp"

// Manager handles artifact storage and duplicate detection.
type Manager struct {
	outputDir  string
	downloaded map[int64]bool
	claimed    map[int64]bool
	mu         sync.Mutex
}

// NewManager creates a storage manager rooted at outputDir, scanning it
// once so ids downloaded in prior runs are never downloaded again.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		outputDir:  outputDir,
		downloaded: make(map[int64]bool),
		claimed:    make(map[int64]bool),
	}

	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return m, nil
}

// scanExistingFiles builds the dedup index from the output directory.
// An artifact's name always starts with the numeric post id, followed by
// '.' (plain naming) or '_' (tag-embedding naming); sidecars don't count,
// and neither do temp files a crashed run never renamed.
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), SidecarExt) {
			continue
		}
		if strings.HasSuffix(entry.Name(), tempExt) {
			continue
		}
		if id, ok := leadingID(entry.Name()); ok {
			m.downloaded[id] = true
		}
	}

	return nil
}

// leadingID extracts the numeric id prefix of an artifact file name.
func leadingID(name string) (int64, bool) {
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	if end == 0 || end == len(name) {
		return 0, false
	}
	if name[end] != '.' && name[end] != '_' {
		return 0, false
	}
	id, err := strconv.ParseInt(name[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsDownloaded checks if a post already has a downloaded artifact.
func (m *Manager) IsDownloaded(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloaded[id]
}

// Claim marks an id as in flight. It returns false when the id already
// has an artifact or another worker holds the claim, guaranteeing at most
// one completed artifact per id.
func (m *Manager) Claim(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.downloaded[id] || m.claimed[id] {
		return false
	}
	m.claimed[id] = true
	return true
}

// Release drops a claim after a failed download so a later run of the
// same id can retry.
func (m *Manager) Release(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, id)
}

// SaveArtifact writes media bytes as <stem>.<ext> via a temp file and
// atomic rename, then marks the id downloaded.
func (m *Manager) SaveArtifact(id int64, stem, ext string, data []byte) error {
	filename := filepath.Join(m.outputDir, stem+"."+ext)

	if err := writeAtomic(filename, data); err != nil {
		return errs.New(errs.ErrorTypeFilesystem, "failed to save artifact %s: %v", filename, err)
	}

	m.mu.Lock()
	m.downloaded[id] = true
	delete(m.claimed, id)
	m.mu.Unlock()

	return nil
}

// SaveSidecar writes a post's tag sidecar next to its artifact.
func (m *Manager) SaveSidecar(stem, content string) error {
	filename := filepath.Join(m.outputDir, stem+SidecarExt)
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return errs.New(errs.ErrorTypeFilesystem, "failed to save sidecar %s: %v", filename, err)
	}
	return nil
}

func writeAtomic(filename string, data []byte) error {
	tempFile := filename + tempExt
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = out.Write(data)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// OutputDir returns the output directory path.
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// DownloadedCount returns the number of ids with artifacts.
func (m *Manager) DownloadedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.downloaded)
}
