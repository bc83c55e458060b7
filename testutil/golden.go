package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// GoldenEnv rewrites golden files instead of comparing when set.
const GoldenEnv = "SCHOOLGATE_UPDATE_GOLDEN"

// Golden compares got with testdata/<name>.golden of the calling package.
// Line endings are normalized; a mismatch reports the first differing line.
func Golden(t testing.TB, name string, got []byte) {
	t.Helper()
	path := filepath.Join("testdata", name+".golden")
	got = bytes.ReplaceAll(got, []byte("\r\n"), []byte("\n"))

	if os.Getenv(GoldenEnv) != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("golden %s: %v", name, err)
		}
		if err := os.WriteFile(path, got, 0o644); err != nil {
			t.Fatalf("golden %s: %v", name, err)
		}
		return
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("golden %s: %v (set %s=1 to create it)", name, err, GoldenEnv)
	}
	want = bytes.ReplaceAll(want, []byte("\r\n"), []byte("\n"))
	if bytes.Equal(want, got) {
		return
	}

	wantLines := strings.Split(string(want), "\n")
	gotLines := strings.Split(string(got), "\n")
	for i := 0; i < len(wantLines) || i < len(gotLines); i++ {
		var w, g string
		if i < len(wantLines) {
			w = wantLines[i]
		}
		if i < len(gotLines) {
			g = gotLines[i]
		}
		if w != g {
			t.Fatalf("golden %s differs at line %d:\nwant: %q\n got: %q", name, i+1, w, g)
		}
	}
}
