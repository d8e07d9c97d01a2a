package migration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunner_StepsCreateEveryTable(t *testing.T) {
	r := NewRunner()
	assert.Equal(t, "1.0.0", r.Version())

	var all strings.Builder
	for _, s := range r.steps() {
		assert.NotEmpty(t, s.name)
		all.WriteString(s.sql)
	}
	for _, table := range []string{"analysis_runs", "hypothesis_results", "segment_summaries"} {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table)
	}
}
