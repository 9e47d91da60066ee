package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_SmallChangesStayInline(t *testing.T) {
	repo, err := NewAuditRepo(nil)
	require.NoError(t, err)

	var row auditRow
	repo.encode(&row, []byte(`{"status":"cancelled"}`))

	assert.Equal(t, CompressionNone, row.CompressionAlgo)
	assert.Nil(t, row.ChangesCompressed)

	out, err := repo.decode(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"cancelled"}`, string(out))
}

func TestAuditRepo_LargeChangesRoundTripThroughZstd(t *testing.T) {
	repo, err := NewAuditRepo(nil)
	require.NoError(t, err)

	raw := []byte(`{"notes":"` + strings.Repeat("returned to supplier; ", 500) + `"}`)

	var row auditRow
	repo.encode(&row, raw)

	assert.Equal(t, CompressionZstd, row.CompressionAlgo)
	assert.Nil(t, row.Changes)
	assert.Less(t, len(row.ChangesCompressed), len(raw))

	out, err := repo.decode(row)
	require.NoError(t, err)
	assert.Equal(t, raw, []byte(out))
}
