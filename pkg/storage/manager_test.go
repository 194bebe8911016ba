package storage

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewManagerScansExistingArtifacts(t *testing.T) {
	dir := t.TempDir()

	seed := []string{
		"100.png",             // plain naming
		"200_1girl_solo.jpg",  // tag-embedding naming
		"300.txt",             // sidecar, not an artifact
		"notes.md",            // no id prefix
		"400",                 // bare digits, no separator
		"500.png.tmp",         // unfinished write, not an artifact
	}
	for _, name := range seed {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "600"), 0755); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	for _, id := range []int64{100, 200} {
		if !m.IsDownloaded(id) {
			t.Errorf("id %d should be indexed as downloaded", id)
		}
	}
	for _, id := range []int64{300, 400, 500, 600, 999} {
		if m.IsDownloaded(id) {
			t.Errorf("id %d should not be indexed", id)
		}
	}
}

// A temp file left by a crash holds partial bytes; the id must stay
// eligible so the next run re-downloads it.
func TestScanIgnoresStaleTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "42.png.tmp"), []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if m.IsDownloaded(42) {
		t.Error("stale temp file must not mark the id downloaded")
	}
	if !m.Claim(42) {
		t.Error("id with only a stale temp file should be claimable")
	}
}

func TestNewManagerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if m.DownloadedCount() != 0 {
		t.Errorf("fresh directory should index nothing, got %d", m.DownloadedCount())
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("output directory not created: %v", err)
	}
}

func TestClaimReleaseLifecycle(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if !m.Claim(1) {
		t.Fatal("first claim should succeed")
	}
	if m.Claim(1) {
		t.Error("second claim on a held id should fail")
	}

	m.Release(1)
	if !m.Claim(1) {
		t.Error("claim after release should succeed")
	}

	if err := m.SaveArtifact(1, "1", "png", []byte("data")); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}
	if m.Claim(1) {
		t.Error("claim on a downloaded id should fail")
	}
	if !m.IsDownloaded(1) {
		t.Error("saved id should be downloaded")
	}
}

func TestClaimIsExclusiveUnderConcurrency(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	const workers = 32
	var won atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if m.Claim(42) {
				won.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if n := won.Load(); n != 1 {
		t.Errorf("exactly one worker should win the claim, got %d", n)
	}
}

func TestSaveArtifactWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	data := []byte{0x89, 0x50, 0x4E, 0x47}
	if err := m.SaveArtifact(7, "7_1girl", "png", data); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "7_1girl.png"))
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if string(got) != string(data) {
		t.Error("artifact content mismatch")
	}

	// No temp file left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestSaveSidecar(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	body := "vocaloid, hatsune miku, 1girl, blue eyes"
	if err := m.SaveSidecar("7_1girl", body); err != nil {
		t.Fatalf("SaveSidecar failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "7_1girl.txt"))
	if err != nil {
		t.Fatalf("sidecar not written: %v", err)
	}
	if string(got) != body {
		t.Errorf("sidecar content = %q, want %q", got, body)
	}
}

func TestLeadingID(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		ok   bool
	}{
		{"123.png", 123, true},
		{"123_tag_tag.jpg", 123, true},
		{"123", 0, false},
		{"abc.png", 0, false},
		{"12a34.png", 0, false},
		{"", 0, false},
	}

	for _, test := range tests {
		id, ok := leadingID(test.name)
		if ok != test.ok || id != test.id {
			t.Errorf("leadingID(%q) = (%d, %v), want (%d, %v)", test.name, id, ok, test.id, test.ok)
		}
	}
}
