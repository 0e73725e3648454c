package behavior

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/behaviors/pkg/schema"
)

const supportYAML = `
id: support
version: "2"
behaviors:
  - id: greet
    description: Greets the user on any greeting intent
    expression:
      name: greeting
      domain: intent
      children:
        - name: "*"
    actions: [say_hello]
    outputs:
      - type: html
        value: "<b>Hello ${{ name }}</b>"
    quick_replies:
      - value: Help
        is_default: true
  - id: third_visit
    expression:
      name: and
      children:
        - name: 3
          domain: visits
        - name: ignored
    actions: [celebrate]
`

const supportJSON = `{
  "id": "support",
  "behaviors": [
    {
      "id": "greet",
      "expression": {"name": "greeting", "domain": "intent", "children": [{"name": "*"}]},
      "guard": "facts.visits > 1.0",
      "actions": ["say_hello"]
    }
  ]
}`

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFor("rules.yaml"))
	assert.Equal(t, FormatYAML, FormatFor("RULES.YML"))
	assert.Equal(t, FormatJSON, FormatFor("rules.json"))
	assert.Equal(t, FormatJSON, FormatFor("rules"))
}

func TestParse_YAML(t *testing.T) {
	set, err := Parse([]byte(supportYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "support", set.ID)
	assert.Equal(t, "2", set.Version)
	require.Len(t, set.Behaviors, 2)

	greet := set.Behaviors[0]
	assert.Equal(t, "greeting(*)", greet.Expression.String())
	assert.Equal(t, "intent", greet.Expression.Domain)
	assert.Equal(t, schema.OutputHTML, greet.Outputs[0].Type)
	assert.True(t, greet.QuickReplies[0].IsDefault)

	third := set.Behaviors[1]
	assert.Equal(t, "3", third.Expression.Children[0].Name, "unquoted numeric names decode as strings")
}

func TestParse_JSON(t *testing.T) {
	set, err := Parse([]byte(supportJSON), FormatJSON)
	require.NoError(t, err)
	require.Len(t, set.Behaviors, 1)
	assert.Equal(t, "facts.visits > 1.0", set.Behaviors[0].Guard)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(`{"id":"s","behaviors":[{"id":"b","expression":{"name":"*"},"when":"x"}]}`), FormatJSON)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = Parse([]byte("id: s\nbehaviors:\n  - id: b\n    expression: {name: '*'}\n    when: x\n"), FormatYAML)
	require.Error(t, err)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"id":`), FormatJSON)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = Parse([]byte("id: [unclosed"), FormatYAML)
	require.Error(t, err)

	_, err = Parse([]byte(`{}`), Format("toml"))
	require.Error(t, err)
}

func TestParse_SchemaViolation(t *testing.T) {
	_, err := Parse([]byte(`{"id":"s","behaviors":[{"id":"b","expression":{"name":""}}]}`), FormatJSON)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "rules.yaml")
	jsonPath := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte(supportYAML), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(supportJSON), 0o644))

	set, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Len(t, set.Behaviors, 2)

	set, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, set.Behaviors, 1)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestLoadFile_MalformedCarriesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":`), 0o644))

	_, err := LoadFile(path)
	be, ok := schema.AsBehaviorError(err)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, be.Code)
	assert.Equal(t, path, be.Details["file"])
}

func TestLoadFile_CompileAndEvaluate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(supportYAML), 0o644))

	set, err := LoadFile(path)
	require.NoError(t, err)
	e := compile(t, set, Options{})

	res, err := e.Evaluate(context.Background(), Step{Facts: map[string]any{"visits": "3"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"third_visit"}, res.BehaviorIDs())
}
