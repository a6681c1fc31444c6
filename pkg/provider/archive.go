// Package provider fetches run logs from the CI provider. A run's logs come
// as a ZIP archive of plain-text files; the extractor flattens them into one
// annotated text blob the parser understands.
package provider

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyLog marks an archive with no text entries. Terminal: retrying the
// job cannot produce content.
var ErrEmptyLog = errors.New("log archive contains no text entries")

// ErrBadArchive marks a payload that is not a readable ZIP. Terminal.
var ErrBadArchive = errors.New("log archive is not a valid zip")

// ExtractLogArchive flattens a ZIP archive into a single log text. Every
// `.txt` entry is emitted in archive order, prefixed by a marker line the
// step detector treats as a step boundary.
func ExtractLogArchive(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	var b strings.Builder
	found := 0
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() || !strings.HasSuffix(entry.Name, ".txt") {
			continue
		}
		content, err := readEntry(entry)
		if err != nil {
			return "", fmt.Errorf("failed to read archive entry %q: %w", entry.Name, err)
		}
		fmt.Fprintf(&b, "\n--- Log File: %s ---\n", entry.Name)
		b.Write(content)
		found++
	}

	if found == 0 {
		return "", ErrEmptyLog
	}
	return b.String(), nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
