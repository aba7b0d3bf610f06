package testdata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoader_Resolve(t *testing.T) {
	l := New("testdata/rest")

	assert.Equal(t, filepath.FromSlash("testdata/rest/default/svc/a.json"), l.Resolve("default/svc/a"))
	assert.Equal(t, filepath.FromSlash("testdata/rest/default/svc/a.json"), l.Resolve("testdata/rest/default/svc/a.json"))
	assert.Equal(t, filepath.FromSlash("testdata/rest/x.txt"), l.Resolve("x.txt"))
	assert.Equal(t, DefaultRoot, New("").Root)
}

func TestLoader_LoadResolvesPlaceholders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "static/svc/shared.json", `{"client": {"id": 42}, "code": "ABC"}`)
	writeFile(t, root, "default/svc/quote.json", `{
  "date": "$<today:yyyy>",
  "client": "$<testdata:static/svc/shared:client>",
  "code": "$<testdata:static/svc/shared:code>",
  "later": "$<cache:step1:id>"
}`)

	now := time.Date(2031, 5, 1, 0, 0, 0, 0, time.UTC)
	l := New(root, WithClock(func() time.Time { return now }))

	text, err := l.Load("default/svc/quote")
	require.NoError(t, err)
	assert.JSONEq(t, `{
  "date": "2031",
  "client": {"id": 42},
  "code": "ABC",
  "later": "$<cache:step1:id>"
}`, text)
}

func TestLoader_Errors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.json", `{not json`)
	writeFile(t, root, "loop.json", `{"self": "$<testdata:loop:self>"}`)

	l := New(root)

	_, err := l.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load("bad")
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = l.Load("loop")
	assert.ErrorIs(t, err, ErrNestingDepth)
}

func TestDocument_Named(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "default/svc/members.json", `{
  "member": {"state": "any"},
  "member_TX": {"state": "TX"},
  "dotted.name": 1
}`)

	doc, err := New(root).Default("svc", "members")
	require.NoError(t, err)

	raw, err := doc.Named("member", "TX")
	require.NoError(t, err)
	assert.JSONEq(t, `{"state": "TX"}`, raw)

	raw, err = doc.Named("member", "CA")
	require.NoError(t, err)
	assert.JSONEq(t, `{"state": "any"}`, raw)

	raw, err = doc.Named("dotted.name", "")
	require.NoError(t, err)
	assert.Equal(t, "1", raw)

	_, err = doc.Named("nobody", "")
	assert.ErrorIs(t, err, ErrMissingNode)

	var member struct {
		State string `json:"state"`
	}
	require.NoError(t, doc.AsModel(&member, "member", "TX"))
	assert.Equal(t, "TX", member.State)

	m, err := doc.AsMap()
	require.NoError(t, err)
	assert.Len(t, m, 3)
}

func TestLoader_StaticAndForTest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "static/svc/s.json", `{"a": 1}`)
	writeFile(t, root, "quotes/TestCreate.json", `{"b": 2}`)
	l := New(root)

	doc, err := l.Static("svc", "s")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, doc.String())

	doc, err = l.ForTest("quotes", "TestCreate")
	require.NoError(t, err)
	assert.JSONEq(t, `{"b": 2}`, doc.String())

	doc, err = l.FromString(`{"y": "$<BOY:MM-dd>"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"y": "01-01"}`, doc.String())
}
