package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSave(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	path, err := s.Save("report.docx", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, "modules") {
		t.Errorf("unexpected dir: %s", path)
	}
	base := filepath.Base(path)
	if !strings.HasSuffix(base, "_report.docx") || len(base) != 36+len("_report.docx") {
		t.Errorf("unexpected name: %s", base)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}
}

func TestSaveSameNameTwice(t *testing.T) {
	s := New(t.TempDir())
	a, err := s.Save("a.csv", strings.NewReader("1"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Save("a.csv", strings.NewReader("2"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two uploads with the same name must not collide")
	}
}

func TestSaveStripsDirectories(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	for _, name := range []string{"../../etc/passwd.csv", `C:\Users\me\data.csv`, "/abs/data.csv"} {
		path, err := s.Save(name, strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Save(%q): %v", name, err)
		}
		if filepath.Dir(path) != filepath.Join(root, "modules") {
			t.Errorf("Save(%q) escaped the storage dir: %s", name, path)
		}
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"data.csv", "data.csv"},
		{"dir/data.csv", "data.csv"},
		{`dir\sub\Data.PDF`, "Data.PDF"},
		{"", "upload"},
		{"..", "upload"},
		{"dir/", "upload"},
	}
	for _, tt := range tests {
		if got := BaseName(tt.in); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRemove(t *testing.T) {
	s := New(t.TempDir())
	path, _ := s.Save("x.pdf", strings.NewReader("x"))
	if err := s.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists: %v", err)
	}
	if err := s.Remove(path); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}
