package extract

// FindKey recursively collects every value stored under key at any depth of a
// decoded JSON document (maps and slices of any). List values are flattened
// into the result rather than appended as one element.
func FindKey(data any, key string) []any {
	var found []any

	switch node := data.(type) {
	case map[string]any:
		for k, v := range node {
			if k == key {
				if list, ok := v.([]any); ok {
					found = append(found, list...)
				} else {
					found = append(found, v)
				}
				continue
			}
			switch v.(type) {
			case map[string]any, []any:
				found = append(found, FindKey(v, key)...)
			}
		}
	case []any:
		for _, item := range node {
			found = append(found, FindKey(item, key)...)
		}
	}

	return found
}
