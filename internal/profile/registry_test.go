package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsreborn2/intellio-sub004/internal/types"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capabilities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistry_LoadsDefinitions(t *testing.T) {
	path := writeProfile(t, `
capabilities:
  message-archive:
    description: 메시지 검색
    timeout_seconds: 20
  report:
    enabled: false
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Len(t, snap.Definitions, 2)

	archive, ok := r.Definition(types.CapMessageArchive)
	require.True(t, ok)
	assert.True(t, archive.IsEnabled())
	assert.Equal(t, 20, archive.TimeoutSeconds)

	report, ok := r.Definition(types.CapReport)
	require.True(t, ok)
	assert.False(t, report.IsEnabled())
}

func TestRegistry_UnknownTagRejected(t *testing.T) {
	path := writeProfile(t, `
capabilities:
  crystal-ball:
    description: 점성술
`)
	_, err := NewRegistry(path)
	assert.Error(t, err)
}

func TestRegistry_UnknownFieldRejected(t *testing.T) {
	path := writeProfile(t, `
capabilities:
  report:
    descriptoin: 오타
`)
	_, err := NewRegistry(path)
	assert.Error(t, err)
}

func TestRegistry_AliasTagNormalized(t *testing.T) {
	path := writeProfile(t, `
capabilities:
  financial_statement:
    timeout_seconds: 15
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	def, ok := r.Definition(types.CapFinancialStatement)
	require.True(t, ok)
	assert.Equal(t, string(types.CapFinancialStatement), def.Tag)
}
