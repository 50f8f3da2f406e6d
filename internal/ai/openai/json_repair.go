package openai

// repairJSON fixes keys that lost their opening quote, e.g. `, type":` becomes `, "type":`.
func repairJSON(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)

	i := 0
	for i < len(in) {
		ch := in[i]
		if ch != '{' && ch != ',' {
			out = append(out, ch)
			i++
			continue
		}
		out = append(out, ch)
		i++
		for i < len(in) && (in[i] == ' ' || in[i] == '\n' || in[i] == '\t' || in[i] == '\r') {
			out = append(out, in[i])
			i++
		}
		if i >= len(in) || !isLetter(in[i]) {
			continue
		}
		start := i
		for i < len(in) && (isLetter(in[i]) || in[i] == '_') {
			i++
		}
		if i+1 < len(in) && in[i] == '"' && in[i+1] == ':' {
			out = append(out, '"')
		}
		out = append(out, in[start:i]...)
	}
	return string(out)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
