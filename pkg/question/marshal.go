package question

import "encoding/json"

// marshalOrEmpty renders v as JSON for prompt embedding; a marshal failure
// here would mean a bug in this package's own prompt-context struct, not a
// runtime condition worth propagating up through Generate's error path.
func marshalOrEmpty(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
