package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// metadataRecord is the first non-empty line of a journal file.
type metadataRecord struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Record is one data line of the journal: a timestamped envelope.
type Record struct {
	Timestamp float64 `json:"timestamp"`
	Message   Message `json:"message"`
}

// File is the append-only JSONL journal backing a Wire. The protocol
// version is decided from an existing file's header if present, else from
// ProtocolVersion. Grounded on wire/file.rs.
type File struct {
	mu              sync.Mutex
	path            string
	protocolVersion string
	wroteHeader     bool
}

// Open prepares a journal at path. If the file exists and is non-empty,
// its existing metadata header determines ProtocolVersion for this run;
// otherwise a fresh file will be created (on first Append) with the
// current default version.
func Open(path string) (*File, error) {
	f := &File{path: path, protocolVersion: ProtocolVersion}

	existing, err := loadExistingVersion(path)
	if err != nil {
		return nil, err
	}
	if existing != "" {
		f.protocolVersion = existing
		f.wroteHeader = true
	}
	return f, nil
}

func loadExistingVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("wire file %q: %w", path, err)
	}
	if len(data) == 0 {
		return "", nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var meta metadataRecord
		if err := json.Unmarshal([]byte(line), &meta); err == nil && meta.Type == "metadata" {
			return meta.ProtocolVersion, nil
		}
		// First non-empty, non-metadata line: no header present.
		return "", nil
	}
	return "", nil
}

// IsEmpty reports whether the backing file does not yet exist or has zero
// size.
func (f *File) IsEmpty() bool {
	info, err := os.Stat(f.path)
	if err != nil {
		return true
	}
	return info.Size() == 0
}

// AppendMessage wraps msg in a timestamped Record and appends it, writing
// the metadata header first if this is a new/empty file.
func (f *File) AppendMessage(msg Message) error {
	return f.appendRecord(Record{Timestamp: nowSeconds(), Message: msg})
}

func (f *File) appendRecord(rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("wire file %q: %w", f.path, err)
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("wire file %q: %w", f.path, err)
	}
	defer file.Close()

	if !f.wroteHeader && f.IsEmpty() {
		meta := metadataRecord{Type: "metadata", ProtocolVersion: f.protocolVersion}
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if _, err := file.Write(append(b, '\n')); err != nil {
			return err
		}
		f.wroteHeader = true
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = file.Write(append(b, '\n'))
	return err
}

// IterRecords yields every data record in file order, skipping the
// metadata line and any unparsable lines (logging a warning for the
// latter) without halting the iteration.
func (f *File) IterRecords(yield func(Record) bool) error {
	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("wire file %q: %w", f.path, err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var meta metadataRecord
		if err := json.Unmarshal([]byte(line), &meta); err == nil && meta.Type == "metadata" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			slog.Warn("wire journal: skipping unparsable line", "path", f.path, "error", err)
			continue
		}
		if !yield(rec) {
			return nil
		}
	}
	return sc.Err()
}

// LoadProtocolVersion returns the version this file will read/write.
func (f *File) LoadProtocolVersion() string { return f.protocolVersion }

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
