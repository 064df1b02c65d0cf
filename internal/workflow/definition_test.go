package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prospectingYAML = `
workflow:
  steps:
    - id: discover
      agent: hunter
      action: search_leads
      inputs:
        industry: saas
        limit: 100
    - id: enrich
      action: enrich_contacts
      inputs:
        leads: from_previous_step
    - id: enroll
      action: enroll_in_campaign
      inputs:
        contacts: from_enrich.contacts
`

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition("prospecting", []byte(prospectingYAML))
	require.NoError(t, err)

	assert.Equal(t, "prospecting", def.Name)
	require.Len(t, def.Steps, 3)
	assert.Equal(t, "discover", def.Steps[0].ID)
	assert.Equal(t, "hunter", def.Steps[0].Agent)
	assert.Equal(t, "search_leads", def.Steps[0].Action)
	assert.Equal(t, "saas", def.Steps[0].Inputs["industry"])
	assert.Equal(t, "from_previous_step", def.Steps[1].Inputs["leads"])
}

func TestParseDefinition_Rejections(t *testing.T) {
	_, err := ParseDefinition("empty", []byte("workflow:\n  steps: []\n"))
	assert.ErrorContains(t, err, "no steps")

	_, err = ParseDefinition("noid", []byte("workflow:\n  steps:\n    - action: a\n"))
	assert.ErrorContains(t, err, "no id")

	_, err = ParseDefinition("dup", []byte("workflow:\n  steps:\n    - id: x\n      action: a\n    - id: x\n      action: b\n"))
	assert.ErrorContains(t, err, "duplicate step id")

	_, err = ParseDefinition("noaction", []byte("workflow:\n  steps:\n    - id: x\n"))
	assert.ErrorContains(t, err, "no action")

	_, err = ParseDefinition("garbage", []byte("{{not yaml"))
	assert.Error(t, err)
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prospecting.yaml"), []byte(prospectingYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	defs, err := LoadDefinitions(dir)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Contains(t, defs, "prospecting")
	assert.Len(t, defs["prospecting"].Steps, 3)
}
