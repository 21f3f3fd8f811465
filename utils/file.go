package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CopyFileWithTimestamp copies a file into dir under its timestamped name
// and returns the destination path.
func CopyFileWithTimestamp(sourcePath, dir string) (string, error) {
	if err := EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(dir, TimestampedName(sourcePath))
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create destination file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return "", fmt.Errorf("copy file: %w", err)
	}
	return destPath, nil
}

// TimestampedName derives the stored name for an uploaded file: sanitized
// stem, upload timestamp, original extension. Re-uploads of the same paper
// never collide.
func TimestampedName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	stem := SanitizeFilename(strings.TrimSuffix(filepath.Base(original), filepath.Ext(original)))
	return fmt.Sprintf("%s_%d%s", stem, time.Now().Unix(), ext)
}

// Stem returns the file name without its directory or extension.
func Stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// SanitizeFilename strips path separators and characters that are unsafe in
// derived artifact names.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// PageFileName builds the zero-padded per-page file name, width at least 3.
func PageFileName(pageNum, totalPages int) string {
	width := len(fmt.Sprint(totalPages))
	if width < 3 {
		width = 3
	}
	return fmt.Sprintf("page_%0*d.pdf", width, pageNum)
}

// MappingFileName derives the diagram-mapping artifact name from the source
// PDF and the preview image it was produced against.
func MappingFileName(pdfPath, imagePath string) string {
	return fmt.Sprintf("%s__%s.json", Stem(pdfPath), Stem(imagePath))
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
