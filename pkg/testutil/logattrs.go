package testutil

// LogAttr pulls the string value for key out of a flat key-value attribute
// slice, the shape a slog.Handler test double records per log line. It
// returns "" when the key is absent or the value is not a string. Test
// helper only; production code reads attributes through slog.Record.
func LogAttr(attrs []any, key string) string {
	for i := 0; i+1 < len(attrs); i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		if v, ok := attrs[i+1].(string); ok {
			return v
		}
	}
	return ""
}
