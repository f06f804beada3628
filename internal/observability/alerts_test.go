package observability

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

// The alert expressions must keep querying metric names this package exports.
func TestDraftAlertRulesMatchExportedMetrics(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "drafts.yml"))
	require.NoError(t, err)

	var file ruleFile
	require.NoError(t, yaml.Unmarshal(raw, &file))
	require.Len(t, file.Groups, 1)
	group := file.Groups[0]
	assert.Equal(t, "drafts", group.Name)

	want := map[string][2]string{
		"DraftSaveErrors":  {"critical", "quotewizard_draft_saves_total"},
		"DraftSaveLatency": {"warning", "quotewizard_draft_save_duration_seconds_bucket"},
		"DraftJobFailures": {"warning", "quotewizard_job_runs_total"},
	}
	require.Len(t, group.Rules, len(want))

	metrics := NewMetrics()
	metrics.ObserveSave("update", time.Millisecond, nil)
	_ = metrics.Jobs().Track("draft:purge").End(errors.New("db down"))
	exported := scrape(t, metrics)
	for _, rule := range group.Rules {
		exp, ok := want[rule.Alert]
		require.True(t, ok, "unexpected alert %s", rule.Alert)
		assert.Equal(t, exp[0], rule.Labels["severity"], rule.Alert)
		assert.Contains(t, rule.Expr, exp[1], rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		assert.True(t, strings.HasPrefix(rule.Annotations["runbook"], "docs/runbook-drafts.md#"), rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)

		family := strings.TrimSuffix(exp[1], "_bucket")
		assert.Contains(t, exported, "# HELP "+family+" ", rule.Alert)
	}
}
