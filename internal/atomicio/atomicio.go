// Package atomicio provides the canonical JSON encoding and crash-safe
// write-to-temp-then-rename primitive used by every artifact the writer
// (C16) produces. Grounded on the teacher's own os.MkdirAll+os.WriteFile
// pattern in internal/browser/session_manager.go's persistSessions, made
// atomic and newline-terminated per spec.md §6/§4.15.
package atomicio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MarshalCanonical encodes v as UTF-8 JSON with keys sorted at every depth,
// 2-space indentation, and a trailing newline. v is first encoded and
// decoded into generic maps (numbers kept verbatim via UseNumber), so struct
// fields are re-emitted as map keys, which encoding/json sorts by Unicode
// code point.
func MarshalCanonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("marshal canonical json: %w", err)
	}
	buf, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal canonical json: %w", err)
	}
	buf = append(buf, '\n')
	return buf, nil
}

// WriteFileAtomic writes data to path by first writing to a sibling temp
// file in the same directory, then renaming it into place. Rename is atomic
// on POSIX filesystems, so a reader never observes a partially-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}
	return nil
}

// WriteJSONAtomic canonically marshals v and writes it atomically to path.
func WriteJSONAtomic(path string, v interface{}) error {
	data, err := MarshalCanonical(v)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o644)
}
