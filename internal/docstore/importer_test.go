package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportHTML(t *testing.T) {
	page := `<html><head><title>SOAP Note - J. Roe</title><style>p{}</style></head>
<body><h1>Subjective</h1><p>Patient reports   fatigue.</p>
<script>track()</script><p>BP 128/82, HR 72.</p></body></html>`

	doc, err := ImportHTML(page, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "SOAP Note - J. Roe", doc.Title)
	assert.Equal(t, "Subjective\nPatient reports fatigue.\nBP 128/82, HR 72.", doc.Content)
	assert.NotContains(t, doc.Content, "track")
}

func TestImportHTML_Empty(t *testing.T) {
	_, err := ImportHTML("<html><body><script>x()</script></body></html>", "f")
	assert.Error(t, err)
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()

	md := filepath.Join(dir, "visit.md")
	require.NoError(t, os.WriteFile(md, []byte("# Follow-up visit\n\nMetformin 500 mg BID.\n"), 0o644))
	doc, err := ImportFile(md)
	require.NoError(t, err)
	assert.Equal(t, "Follow-up visit", doc.Title)
	assert.Equal(t, "Metformin 500 mg BID.", doc.Content)

	txt := filepath.Join(dir, "intake.txt")
	require.NoError(t, os.WriteFile(txt, []byte("Chief complaint: cough."), 0o644))
	doc, err = ImportFile(txt)
	require.NoError(t, err)
	assert.Equal(t, "intake", doc.Title)

	pdf := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))
	_, err = ImportFile(pdf)
	assert.Error(t, err)
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := `documents:
  - id: 3
    title: Annual physical
    content: |
      Overweight, BMI 27.
  - title: Diabetes follow-up
    content: Metformin 500 mg BID.
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	s := NewMemory()
	n, err := LoadSeed(context.Background(), s, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := s.AllIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, ids)
}

func TestLoadSeed_MissingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("documents:\n  - title: empty\n"), 0o644))

	_, err := LoadSeed(context.Background(), NewMemory(), path)
	assert.Error(t, err)
}
