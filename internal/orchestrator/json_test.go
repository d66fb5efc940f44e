package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/ir"
)

func mustJSON(t *testing.T, v ir.Value) string {
	t.Helper()
	b, err := ir.MarshalValue(v)
	require.NoError(t, err)
	return string(b)
}
