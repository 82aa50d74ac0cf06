package services

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ragchat-platform/internal/config"
)

func newTestStorage(t *testing.T) *BlobStorage {
	t.Helper()
	return NewBlobStorage(&config.Config{
		FileStorageDir: t.TempDir(),
		MaxFileSize:    1 << 20,
	})
}

// uploadedFile builds a real multipart file the way gin hands one to
// the service.
func uploadedFile(t *testing.T, name string, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	writer.Close()

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("parsing form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })

	header := form.File["file"][0]
	file, err := header.Open()
	if err != nil {
		t.Fatalf("opening form file: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return file, header
}

func TestStoreAndRead(t *testing.T) {
	bs := newTestStorage(t)
	content := []byte("%PDF-1.4 test content")
	file, header := uploadedFile(t, "report.pdf", content)

	stored, err := bs.Store(file, header, "user-1")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if stored.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), stored.Size)
	}
	if !strings.Contains(stored.Path, filepath.Join("documents", "user-1")) {
		t.Errorf("expected per-user directory in path, got %s", stored.Path)
	}
	if !strings.HasSuffix(stored.Name, ".pdf") {
		t.Errorf("expected .pdf suffix, got %s", stored.Name)
	}

	got, err := bs.Read(stored.Path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("read content does not match stored content")
	}
}

func TestStoreRejectsInvalidFiles(t *testing.T) {
	bs := newTestStorage(t)

	cases := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"wrong extension", "notes.txt", []byte("plain text")},
		{"path traversal", "../escape.pdf", []byte("%PDF")},
		{"pipe character", "bad|name.pdf", []byte("%PDF")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			file, header := uploadedFile(t, tc.filename, tc.content)
			if _, err := bs.Store(file, header, "user-1"); err == nil {
				t.Errorf("expected rejection for %q", tc.filename)
			}
		})
	}
}

func TestStoreRejectsOversizedFile(t *testing.T) {
	bs := NewBlobStorage(&config.Config{
		FileStorageDir: t.TempDir(),
		MaxFileSize:    10,
	})
	file, header := uploadedFile(t, "big.pdf", []byte("this is more than ten bytes"))
	if _, err := bs.Store(file, header, "user-1"); err == nil {
		t.Error("expected oversized file rejection")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	bs := newTestStorage(t)
	file, header := uploadedFile(t, "doc.pdf", []byte("%PDF data"))

	stored, err := bs.Store(file, header, "user-1")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := bs.Remove(stored.Path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(stored.Path); !os.IsNotExist(err) {
		t.Error("expected file to be gone")
	}
	if err := bs.Remove(stored.Path); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
	if err := bs.Remove(""); err != nil {
		t.Errorf("Remove of empty path should be a no-op, got %v", err)
	}
}

func TestSecureFilename(t *testing.T) {
	bs := newTestStorage(t)

	name := bs.secureFilename("My Annual Report..2024.pdf")
	if strings.Contains(name, " ") {
		t.Errorf("expected spaces replaced, got %q", name)
	}
	if strings.Contains(name, "..") {
		t.Errorf("expected double dots stripped, got %q", name)
	}
	if !strings.HasSuffix(name, ".pdf") {
		t.Errorf("expected extension preserved, got %q", name)
	}

	other := bs.secureFilename("My Annual Report..2024.pdf")
	if name == other {
		t.Error("expected unique names for repeated uploads of the same file")
	}
}
