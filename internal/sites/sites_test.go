package sites

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"hotprices/internal/models"
)

const testDay = "2024-03-01"

func record(t *testing.T, payload string) models.RawRecord {
	t.Helper()

	var r models.RawRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &r))

	return r
}

func groups(t *testing.T, payload string) []models.CategoryGroup {
	t.Helper()

	var g []models.CategoryGroup
	require.NoError(t, json.Unmarshal([]byte(payload), &g))

	return g
}
