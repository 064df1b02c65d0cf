package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveInputs_Literals(t *testing.T) {
	inputs := map[string]interface{}{
		"limit":  50,
		"region": "EMEA",
		"active": true,
	}
	out := ResolveInputs(inputs, map[string]interface{}{}, "")
	assert.Equal(t, inputs, out)
}

func TestResolveInputs_FromPreviousStep(t *testing.T) {
	wfCtx := map[string]interface{}{
		"discover": []interface{}{1, 2, 3},
	}
	out := ResolveInputs(map[string]interface{}{"items": "from_previous_step"}, wfCtx, "discover")
	assert.Equal(t, []interface{}{1, 2, 3}, out["items"])

	// No previous step resolves to nil rather than erroring.
	out = ResolveInputs(map[string]interface{}{"items": "from_previous_step"}, wfCtx, "")
	assert.Nil(t, out["items"])
}

func TestResolveInputs_FromNamedStep(t *testing.T) {
	wfCtx := map[string]interface{}{
		"score": map[string]interface{}{"count": 3},
	}
	out := ResolveInputs(map[string]interface{}{"scores": "from_score"}, wfCtx, "score")
	assert.Equal(t, map[string]interface{}{"count": 3}, out["scores"])
}

func TestResolveInputs_DottedPath(t *testing.T) {
	wfCtx := map[string]interface{}{
		"enrich": map[string]interface{}{
			"company": map[string]interface{}{"size": 250},
		},
	}

	out := ResolveInputs(map[string]interface{}{"size": "from_enrich.company.size"}, wfCtx, "enrich")
	assert.Equal(t, 250, out["size"])

	// Missing intermediate keys produce nil, not a panic.
	out = ResolveInputs(map[string]interface{}{"x": "from_enrich.company.missing.deeper"}, wfCtx, "enrich")
	assert.Nil(t, out["x"])

	out = ResolveInputs(map[string]interface{}{"x": "from_unknown_step.field"}, wfCtx, "enrich")
	assert.Nil(t, out["x"])
}

func TestResolveInputs_Recursive(t *testing.T) {
	wfCtx := map[string]interface{}{
		"a": "result-a",
		"b": map[string]interface{}{"n": 7},
	}
	inputs := map[string]interface{}{
		"nested": map[string]interface{}{
			"first": "from_a",
			"count": "from_b.n",
		},
		"list": []interface{}{"from_a", "literal", 42},
	}

	out := ResolveInputs(inputs, wfCtx, "b")
	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, "result-a", nested["first"])
	assert.Equal(t, 7, nested["count"])
	assert.Equal(t, []interface{}{"result-a", "literal", 42}, out["list"])
}

func TestResolveInputs_NilInputs(t *testing.T) {
	out := ResolveInputs(nil, map[string]interface{}{}, "")
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
