package workflow

import "strings"

const (
	refPrefix       = "from_"
	refPreviousStep = "from_previous_step"
)

// ResolveInputs expands step input references against the accumulated
// context. Literal values pass through; the sentinel "from_previous_step"
// yields the preceding step's full result; "from_<step>" yields the named
// step's result; "from_<step>.<path>" walks a dotted path into it, producing
// nil for any missing segment. Maps and slices resolve recursively.
func ResolveInputs(inputs map[string]interface{}, wfCtx map[string]interface{}, prevStepID string) map[string]interface{} {
	if inputs == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		out[k] = resolveValue(v, wfCtx, prevStepID)
	}
	return out
}

func resolveValue(v interface{}, wfCtx map[string]interface{}, prevStepID string) interface{} {
	switch val := v.(type) {
	case string:
		return resolveString(val, wfCtx, prevStepID)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = resolveValue(inner, wfCtx, prevStepID)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = resolveValue(inner, wfCtx, prevStepID)
		}
		return out
	default:
		return v
	}
}

func resolveString(s string, wfCtx map[string]interface{}, prevStepID string) interface{} {
	if s == refPreviousStep {
		if prevStepID == "" {
			return nil
		}
		return wfCtx[prevStepID]
	}
	if !strings.HasPrefix(s, refPrefix) {
		return s
	}

	ref := strings.TrimPrefix(s, refPrefix)
	stepID, path, hasPath := strings.Cut(ref, ".")
	v, ok := wfCtx[stepID]
	if !ok {
		return nil
	}
	if !hasPath {
		return v
	}
	return walkPath(v, path)
}

// walkPath follows a dotted path through nested maps, returning nil at the
// first missing segment.
func walkPath(v interface{}, path string) interface{} {
	for _, seg := range strings.Split(path, ".") {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return v
}
