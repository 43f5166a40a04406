package usecase

// The oracle is only asked to embed a JSON object somewhere in its reply,
// so responses are scanned for the first balanced top-level object instead
// of being decoded whole. The scan is a single forward pass over the bytes;
// no regular expressions, no backtracking.

// extractJSONObject returns the first balanced top-level JSON object in
// text, or false if none is present.
func extractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"':
			if start >= 0 {
				i = skipJSONString(text, i)
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// skipJSONString advances past a string literal, honoring escape
// sequences. i is the index of the opening quote; the returned index is
// the closing quote (or end of input for an unterminated literal).
func skipJSONString(text string, i int) int {
	for i++; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return len(text)
}
