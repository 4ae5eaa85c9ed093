package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMovementsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movements.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMovements(t *testing.T) {
	path := writeMovementsFile(t, `[
		{"date": "2026-06-10", "concept": "GARCIA JUAN    482 - Spring Campaign", "amount": "100.00"},
		{"date": "2026-06-11", "concept": "LOPEZ ANA 483", "amount": "500"}
	]`)

	movements, err := loadMovements(path)
	require.NoError(t, err)
	require.Len(t, movements, 2)

	assert.Equal(t, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), movements[0].Date)
	assert.Equal(t, "GARCIA JUAN    482 - Spring Campaign", movements[0].Concept)
	assert.Equal(t, int64(100), movements[0].Amount)
	assert.Equal(t, int64(500), movements[1].Amount)
}

func TestLoadMovementsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "fractional amount",
			content: `[{"date": "2026-06-10", "concept": "X", "amount": "100.50"}]`,
		},
		{
			name:    "negative amount",
			content: `[{"date": "2026-06-10", "concept": "X", "amount": "-100"}]`,
		},
		{
			name:    "unparseable amount",
			content: `[{"date": "2026-06-10", "concept": "X", "amount": "cien"}]`,
		},
		{
			name:    "bad date",
			content: `[{"date": "10/06/2026", "concept": "X", "amount": "100"}]`,
		},
		{
			name:    "not json",
			content: `movements!`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeMovementsFile(t, tt.content)
			_, err := loadMovements(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMovementsAllOrNothing(t *testing.T) {
	// One bad line poisons the whole file; no partial results.
	path := writeMovementsFile(t, `[
		{"date": "2026-06-10", "concept": "GOOD", "amount": "100"},
		{"date": "2026-06-11", "concept": "BAD", "amount": "100.01"}
	]`)

	movements, err := loadMovements(path)
	assert.Error(t, err)
	assert.Nil(t, movements)
}

func TestLoadMovementsMissingFile(t *testing.T) {
	_, err := loadMovements(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
