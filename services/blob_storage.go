package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragchat-platform/internal/config"
)

// BlobStorage stores uploaded document files on local disk, one
// directory per user. Writes go through a temp file and rename so a
// crashed upload never leaves a partial file at the final path.
type BlobStorage struct {
	uploadDir string
	tempDir   string
	maxSize   int64
}

func NewBlobStorage(cfg *config.Config) *BlobStorage {
	baseDir := cfg.FileStorageDir
	if baseDir == "" {
		baseDir = "./storage"
	}

	uploadDir := filepath.Join(baseDir, "documents")
	tempDir := filepath.Join(baseDir, "temp")

	os.MkdirAll(uploadDir, 0755)
	os.MkdirAll(tempDir, 0755)

	return &BlobStorage{
		uploadDir: uploadDir,
		tempDir:   tempDir,
		maxSize:   cfg.MaxFileSize,
	}
}

// StoredFile describes a file after it has been written to disk.
type StoredFile struct {
	Path string
	Name string
	Size int64
}

// Store validates and writes an uploaded file, returning its handle.
func (bs *BlobStorage) Store(file multipart.File, header *multipart.FileHeader, userID string) (*StoredFile, error) {
	if err := bs.validate(header); err != nil {
		return nil, err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to reset file position: %w", err)
	}

	userDir := filepath.Join(bs.uploadDir, userID)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create user directory: %w", err)
	}

	secureName := bs.secureFilename(header.Filename)
	finalPath := filepath.Join(userDir, secureName)

	tempPath := filepath.Join(bs.tempDir, uuid.NewString()+".tmp")
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(tempFile, file)
	if err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	if written == 0 {
		os.Remove(tempPath)
		return nil, fmt.Errorf("file is empty")
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to move file to final location: %w", err)
	}

	return &StoredFile{Path: finalPath, Name: secureName, Size: written}, nil
}

// Read returns the file contents for a stored path.
func (bs *BlobStorage) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Remove deletes a stored file. Missing files are not an error; delete
// retries must be idempotent.
func (bs *BlobStorage) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file %s: %w", path, err)
	}
	return nil
}

func (bs *BlobStorage) validate(header *multipart.FileHeader) error {
	if header.Size == 0 {
		return fmt.Errorf("file is empty")
	}
	if header.Size > bs.maxSize {
		return fmt.Errorf("file size %d exceeds maximum allowed size %d", header.Size, bs.maxSize)
	}

	name := header.Filename
	if name == "" {
		return fmt.Errorf("filename is required")
	}
	if len(name) > 255 {
		return fmt.Errorf("filename too long (max 255 characters)")
	}
	dangerous := []string{"../", "..\\", "<", ">", ":", "\"", "|", "?", "*", "\x00"}
	for _, char := range dangerous {
		if strings.Contains(name, char) {
			return fmt.Errorf("filename contains invalid or dangerous characters")
		}
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return fmt.Errorf("only PDF files (.pdf extension) are allowed")
	}
	return nil
}

// secureFilename prefixes a timestamp and random id so user-supplied
// names can never collide or escape the storage directory.
func (bs *BlobStorage) secureFilename(originalName string) string {
	timestamp := time.Now().Format("20060102_150405")
	randomID := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	ext := filepath.Ext(originalName)
	baseName := strings.TrimSuffix(filepath.Base(originalName), ext)
	safeName := strings.ReplaceAll(baseName, " ", "_")
	safeName = strings.ReplaceAll(safeName, "..", "")
	if len(safeName) > 50 {
		safeName = safeName[:50]
	}

	return fmt.Sprintf("%s_%s_%s%s", timestamp, randomID, safeName, ext)
}
