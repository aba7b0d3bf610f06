package scenario

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

// DDFolder is the folder under the test-data root holding scenario files.
const DDFolder = "dd"

var ErrFileNotFound = errors.New("no scenario file matches")

// Adapter discovers scenario files under <root>/dd/<folder> and loads them.
type Adapter struct {
	root      string
	files     []string
	loaded    []string
	byFile    map[string][]*Scenario
	scenarios []*Scenario
	logger    *slog.Logger
}

type AdapterOption func(*Adapter)

func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter collects the .json files of every folder, in lexical order.
func NewAdapter(root string, folders []string, opts ...AdapterOption) (*Adapter, error) {
	a := &Adapter{
		root:   root,
		byFile: make(map[string][]*Scenario),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, folder := range folders {
		folder = strings.TrimSpace(folder)
		if folder == "" {
			continue
		}
		dir := filepath.Join(root, DDFolder, folder)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".json") {
				a.files = append(a.files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error reading files from folder %s: %w", folder, err)
		}
	}

	a.logger.Debug("scenario files discovered", "root", root, "folders", folders, "count", len(a.files))
	return a, nil
}

// Files lists every discovered file.
func (a *Adapter) Files() []string {
	return append([]string(nil), a.files...)
}

// FromFile loads the first discovered file whose name contains name.
func (a *Adapter) FromFile(name string) error {
	name = strings.TrimSpace(name)
	for _, path := range a.files {
		if strings.Contains(filepath.Base(path), name) {
			return a.read(path)
		}
	}
	return fmt.Errorf("%w %q: check the file name and the dd folders", ErrFileNotFound, name)
}

func (a *Adapter) FromFiles(names []string) error {
	for _, name := range names {
		if err := a.FromFile(name); err != nil {
			return err
		}
	}
	return nil
}

// FromAll loads every discovered file.
func (a *Adapter) FromAll() error {
	for _, path := range a.files {
		if err := a.read(path); err != nil {
			return err
		}
	}
	return nil
}

// FromNames loads the named files, or every file when names is empty.
func (a *Adapter) FromNames(names []string) error {
	if len(names) == 0 {
		return a.FromAll()
	}
	return a.FromFiles(names)
}

func (a *Adapter) read(path string) error {
	if _, done := a.byFile[path]; done {
		return nil
	}
	scenarios, err := ParseFile(path)
	if err != nil {
		return err
	}
	a.logger.Debug("scenario file loaded", "file", path, "scenarios", len(scenarios))

	a.loaded = append(a.loaded, path)
	a.byFile[path] = scenarios
	a.scenarios = append(a.scenarios, scenarios...)
	return nil
}

// Scenarios returns loaded scenarios in file then declaration order.
func (a *Adapter) Scenarios() []*Scenario {
	return append([]*Scenario(nil), a.scenarios...)
}

// ByFile returns the scenarios loaded from path.
func (a *Adapter) ByFile(path string) []*Scenario {
	return a.byFile[path]
}

// Loaded lists the files loaded so far, in load order.
func (a *Adapter) Loaded() []string {
	return append([]string(nil), a.loaded...)
}
