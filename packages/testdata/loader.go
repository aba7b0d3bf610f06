// Package testdata loads JSON test-data documents from a root folder and
// resolves their placeholders on load.
package testdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/expression"
	"github.com/tidwall/gjson"
)

// DefaultRoot is where test data lives unless configured otherwise.
const DefaultRoot = "testdata/rest"

// maxDepth bounds how deeply testdata references may nest.
const maxDepth = 16

var (
	ErrNotFound     = errors.New("wrong path to file or file doesn't exist")
	ErrInvalidJSON  = errors.New("test data is not valid JSON")
	ErrMissingNode  = errors.New("node is not present in json structure")
	ErrNestingDepth = errors.New("testdata references nest too deeply")
)

type Loader struct {
	Root   string
	clock  func() time.Time
	logger *slog.Logger
	depth  int
}

type Option func(*Loader)

func WithClock(clock func() time.Time) Option {
	return func(l *Loader) {
		l.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

func New(root string, opts ...Option) *Loader {
	if root == "" {
		root = DefaultRoot
	}
	l := &Loader{
		Root:   root,
		clock:  time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve maps a reference to a file path: relative paths land under the
// root unless they already start with it, and .json is added when the
// name has no extension.
func (l *Loader) Resolve(path string) string {
	path = filepath.FromSlash(strings.TrimSpace(path))
	if filepath.Ext(path) == "" {
		path += ".json"
	}
	if filepath.IsAbs(path) || withinRoot(path, l.Root) {
		return path
	}
	return filepath.Join(l.Root, path)
}

func withinRoot(path, root string) bool {
	root = filepath.Clean(filepath.FromSlash(root))
	path = filepath.Clean(path)
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// Load reads the document at path and resolves its general placeholders
// (dates, rx, testdata references, helpers).
func (l *Loader) Load(path string) (string, error) {
	if l.depth >= maxDepth {
		return "", fmt.Errorf("%w: %s", ErrNestingDepth, path)
	}

	file := l.Resolve(path)
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, file, err)
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrInvalidJSON, file)
	}

	l.logger.Debug("loading test data", "file", file, "depth", l.depth)

	nested := *l
	nested.depth++
	text, err := expression.Parse(string(data), expression.General(&nested, l.clock))
	if err != nil {
		return "", fmt.Errorf("%s: %w", file, err)
	}
	return text, nil
}

// Document loads path as a Document.
func (l *Loader) Document(path string) (*Document, error) {
	text, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	return &Document{text: text}, nil
}

// Default loads <root>/default/<service>/<file>.json.
func (l *Loader) Default(service, file string) (*Document, error) {
	return l.Document(filepath.Join("default", service, file))
}

// Static loads <root>/static/<service>/<file>.json, data shared by several
// tests.
func (l *Loader) Static(service, file string) (*Document, error) {
	return l.Document(filepath.Join("static", service, file))
}

// ForTest loads the data of one test: <root>/<dir>/<name>.json. Callers
// pass their own identity, usually derived from t.Name().
func (l *Loader) ForTest(dir, name string) (*Document, error) {
	return l.Document(filepath.Join(dir, name))
}

// Document is a loaded and resolved test-data document.
type Document struct {
	text string
}

// FromString resolves placeholders in text the same way Load does.
func (l *Loader) FromString(text string) (*Document, error) {
	if !json.Valid([]byte(text)) {
		return nil, ErrInvalidJSON
	}
	nested := *l
	nested.depth++
	resolved, err := expression.Parse(text, expression.General(&nested, l.clock))
	if err != nil {
		return nil, err
	}
	return &Document{text: resolved}, nil
}

func (d *Document) String() string {
	return d.text
}

// Named returns the member name, or name_state when state is set and that
// member exists.
func (d *Document) Named(name, state string) (string, error) {
	if state != "" {
		if raw, ok := d.member(name + "_" + state); ok {
			return raw, nil
		}
	}
	raw, ok := d.member(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingNode, name)
	}
	return raw, nil
}

func (d *Document) member(name string) (string, bool) {
	var raw string
	found := false
	gjson.Parse(d.text).ForEach(func(key, value gjson.Result) bool {
		if key.String() == name {
			raw, found = value.Raw, true
			return false
		}
		return true
	})
	return raw, found
}

// AsModel decodes the whole document, or the named member when name is
// given, into v.
func (d *Document) AsModel(v any, name ...string) error {
	text := d.text
	if len(name) > 0 {
		state := ""
		if len(name) > 1 {
			state = name[1]
		}
		var err error
		if text, err = d.Named(name[0], state); err != nil {
			return err
		}
	}
	return json.Unmarshal([]byte(text), v)
}

func (d *Document) AsMap(name ...string) (map[string]any, error) {
	var m map[string]any
	if err := d.AsModel(&m, name...); err != nil {
		return nil, err
	}
	return m, nil
}
