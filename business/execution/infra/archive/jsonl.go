// Package archive persists execution records as JSON lines, the optional
// backup format for the otherwise in-memory history.
package archive

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/fd1az/dexarb/business/execution/domain"
	"github.com/fd1az/dexarb/internal/apperror"
)

// Write streams records to w, one JSON object per line.
func Write(w io.Writer, records []domain.Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return apperror.Wrap(err, apperror.CodeInternalError, "encode execution record")
		}
	}
	return nil
}

// Read parses records from r. Blank lines are skipped; a malformed line
// fails the whole import so a truncated file is noticed, not silently
// half-loaded.
func Read(r io.Reader) ([]domain.Record, error) {
	var out []domain.Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec domain.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidFormat, "parse execution record")
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternalError, "read archive")
	}
	return out, nil
}

// Export writes records to path, creating parent directories as needed.
// The file is written whole and renamed into place.
func Export(path string, records []domain.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperror.Wrap(err, apperror.CodeInternalError, "create archive directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".records-*.jsonl")
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternalError, "create archive temp file")
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return apperror.Wrap(err, apperror.CodeInternalError, "close archive temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperror.Wrap(err, apperror.CodeInternalError, "replace archive")
	}
	return nil
}

// Import loads records from path.
func Import(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeNotFound, "open archive")
	}
	defer f.Close()
	return Read(f)
}
