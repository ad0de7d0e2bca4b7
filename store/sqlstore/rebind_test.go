package sqlstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return ts
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	lite := &Store{dialect: DialectSQLite}
	query := `SELECT id FROM corrections WHERE employee_id = ? AND date >= ? LIMIT ?`

	assert.Equal(t, `SELECT id FROM corrections WHERE employee_id = $1 AND date >= $2 LIMIT $3`, pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
}

func TestTimestampsSortAsText(t *testing.T) {
	early := formatTimestamp(mustParse(t, "2025-12-08T09:00:00+01:00"))
	late := formatTimestamp(mustParse(t, "2025-12-08T08:30:00.5Z"))

	assert.Less(t, early, late)
	assert.Len(t, early, len(late))
	assert.True(t, parseTimestamp(late).Equal(mustParse(t, "2025-12-08T08:30:00.5Z")))
}
