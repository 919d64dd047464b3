// Package kvparse parses the line-oriented KEY=VALUE output produced by
// storage query tools (pvs/vgs/lvs with --nameprefixes --unquoted
// --noheadings and friends). Parsing is deliberately tolerant: tool output
// often carries stray tokens, and a caller knows how many fields a valid
// record line must have.
package kvparse

import "strings"

func isSep(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

// Fields parses one line of whitespace-delimited KEY=VALUE tokens into a map
// and returns the number of tokens successfully extracted. A token without
// '=' is silently discarded. If a key repeats, the last value wins, but every
// valid token still counts; callers compare the count against the expected
// schema size to decide whether the line is a usable record.
func Fields(line string) (map[string]string, int) {
	vars := make(map[string]string)
	count := 0
	for _, tok := range strings.FieldsFunc(line, isSep) {
		key, val, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		vars[key] = val
		count++
	}
	return vars, count
}

// First scans output line by line and returns the first line that parses
// into exactly want fields. Processing stops at the first match. The second
// return value reports whether any line matched.
func First(output string, want int) (map[string]string, bool) {
	for _, line := range strings.Split(output, "\n") {
		vars, n := Fields(line)
		if n == want {
			return vars, true
		}
	}
	return nil, false
}

// All scans output line by line and accumulates, in order, every line that
// parses into exactly want fields. Lines with any other field count are
// skipped. The result is empty (never nil error) when nothing matches;
// callers decide whether that is a parse failure.
func All(output string, want int) []map[string]string {
	var records []map[string]string
	for _, line := range strings.Split(output, "\n") {
		vars, n := Fields(line)
		if n == want {
			records = append(records, vars)
		}
	}
	return records
}
