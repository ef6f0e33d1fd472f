package roster

import "strings"

// Filter keeps students in class (all when empty) whose name or roll contains search.
func Filter(students []Student, class, search string) []Student {
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]Student, 0, len(students))
	for _, st := range students {
		if class != "" && st.Class != class {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(st.Name), search) &&
			!strings.Contains(strings.ToLower(st.Roll), search) {
			continue
		}
		out = append(out, st)
	}
	return out
}
