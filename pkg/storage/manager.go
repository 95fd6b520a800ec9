package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"catalogfetch/pkg/config"
	"catalogfetch/pkg/models"
)

// BatchFile is an existing batch output file
type BatchFile struct {
	Index int
	Path  string
}

// Manager writes batch and error files into the output directory
type Manager struct {
	outputDir   string
	prefix      string
	errorsFile  string
	batchRegexp *regexp.Regexp
	maxIndex    int
	mu          sync.Mutex
}

// NewManager creates the output directory if needed and scans it for batch
// files left by earlier runs.
func NewManager(cfg config.OutputConfig) (*Manager, error) {
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		outputDir:   cfg.Directory,
		prefix:      cfg.FilePrefix,
		errorsFile:  cfg.ErrorsFile,
		batchRegexp: regexp.MustCompile(`^` + regexp.QuoteMeta(cfg.FilePrefix) + `_(\d+)\.json$`),
	}

	files, err := m.BatchFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	if len(files) > 0 {
		m.maxIndex = files[len(files)-1].Index
	}

	return m, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// MaxBatchIndex returns the highest batch index written so far
func (m *Manager) MaxBatchIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxIndex
}

// BatchPath returns the file name for a batch index
func (m *Manager) BatchPath(index int) string {
	return filepath.Join(m.outputDir, fmt.Sprintf("%s_%d.json", m.prefix, index))
}

// ErrorsPath returns the errors file location
func (m *Manager) ErrorsPath() string {
	return filepath.Join(m.outputDir, m.errorsFile)
}

// WriteBatch atomically writes records as batch index
func (m *Manager) WriteBatch(index int, records []models.ProductRecord) (string, error) {
	path := m.BatchPath(index)
	if err := writeJSON(path, records); err != nil {
		return "", fmt.Errorf("failed to write batch %d: %w", index, err)
	}

	m.mu.Lock()
	if index > m.maxIndex {
		m.maxIndex = index
	}
	m.mu.Unlock()

	return path, nil
}

// WriteErrors atomically writes the accumulated failures
func (m *Manager) WriteErrors(failures []models.FetchFailure) (string, error) {
	path := m.ErrorsPath()
	if err := writeJSON(path, failures); err != nil {
		return "", fmt.Errorf("failed to write errors file: %w", err)
	}
	return path, nil
}

// BatchFiles lists batch files in the output directory ordered by index
func (m *Manager) BatchFiles() ([]BatchFile, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []BatchFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := m.batchRegexp.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		files = append(files, BatchFile{Index: index, Path: filepath.Join(m.outputDir, entry.Name())})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Index < files[j].Index })
	return files, nil
}

// ScanProcessedIDs reads every batch file and returns the record ids found,
// in file order. Unreadable files are reported in skipped rather than
// failing the scan.
func (m *Manager) ScanProcessedIDs() (ids []string, skipped []string, err error) {
	files, err := m.BatchFiles()
	if err != nil {
		return nil, nil, err
	}

	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			skipped = append(skipped, f.Path)
			continue
		}

		var records []struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(data, &records); err != nil {
			skipped = append(skipped, f.Path)
			continue
		}
		for _, r := range records {
			if id, ok := rawID(r.ID); ok {
				ids = append(ids, id)
			}
		}
	}

	return ids, skipped, nil
}

// rawID accepts string and numeric ids
func rawID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
