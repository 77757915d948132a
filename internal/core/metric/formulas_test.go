package metric

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileSystemFormulaRepository_Load(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "blended_cpa.yaml", `
name: blended_cpa
label: Blended CPA
formula:
  - kind: metric
    value: spend
  - kind: operator
    value: /
  - kind: metric
    value: purchases
`)
	writeDefinition(t, dir, "margin.yml", `
name: margin_roas
label: Margin-adjusted ROAS
formula:
  - kind: metric
    value: revenue
  - kind: operator
    value: "*"
  - kind: number
    value: "0.6"
  - kind: operator
    value: /
  - kind: metric
    value: spend
`)
	writeDefinition(t, dir, "notes.txt", "not a definition")

	repo, err := NewFileSystemFormulaRepository(dir)
	require.NoError(t, err)
	require.Len(t, repo.All(), 2)

	cm, err := repo.Get(context.Background(), "blended_cpa")
	require.NoError(t, err)
	require.Equal(t, "Blended CPA", cm.Label)
	require.NotEmpty(t, cm.Fingerprint)
	require.Len(t, cm.Formula, 3)

	got := cm.Formula.Evaluate(map[Key]decimal.Decimal{
		"spend":     decimal.NewFromInt(100),
		"purchases": decimal.NewFromInt(4),
	})
	require.True(t, decimal.NewFromInt(25).Equal(got))

	_, err = repo.Get(context.Background(), "nope")
	require.Error(t, err)
}

func TestFileSystemFormulaRepository_MissingDirIsEmpty(t *testing.T) {
	repo, err := NewFileSystemFormulaRepository(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	require.Empty(t, repo.All())
}

func TestFileSystemFormulaRepository_RejectsInvalidFormula(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "bad.yaml", `
name: bad
formula:
  - kind: metric
    value: spend
  - kind: operator
    value: "%"
  - kind: metric
    value: clicks
`)

	_, err := NewFileSystemFormulaRepository(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad")
}

func TestFileSystemFormulaRepository_RejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	def := `
name: dupe
formula:
  - kind: number
    value: "1"
`
	writeDefinition(t, dir, "a.yaml", def)
	writeDefinition(t, dir, "b.yaml", def)

	_, err := NewFileSystemFormulaRepository(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestFileSystemFormulaRepository_SkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "empty.yaml", "# placeholder\n")

	repo, err := NewFileSystemFormulaRepository(dir)
	require.NoError(t, err)
	require.Empty(t, repo.All())
}
