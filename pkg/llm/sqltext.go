package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> tags that may appear at the start of LLM responses.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// thinkContentPattern extracts the content inside <think>...</think> tags.
var thinkContentPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

var (
	fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
	inlineCodePattern  = regexp.MustCompile("`([^`]+)`")
	fenceMarkerPattern = regexp.MustCompile("```[a-zA-Z]*")
)

// Leading words of a line that starts a statement inside prose.
var statementStarters = []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE"}

// ExtractThinking extracts the content from <think>...</think> tags in an LLM response.
// Returns empty string if no thinking tags are found.
func ExtractThinking(response string) string {
	matches := thinkContentPattern.FindStringSubmatch(response)
	if len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

// StripThinking removes a leading <think> block.
func StripThinking(response string) string {
	return thinkTagPattern.ReplaceAllString(response, "")
}

// CleanSQL strips markdown fences, surrounding whitespace and one trailing
// semicolon from a completion that is expected to hold only SQL.
func CleanSQL(response string) string {
	sql := StripThinking(response)
	sql = fenceMarkerPattern.ReplaceAllString(sql, "")
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}

// ExtractSQL pulls a statement out of a completion that may wrap it in prose.
// It tries, in order: the first fenced block, an inline code span starting with
// SELECT or WITH, and the run of lines beginning at the first statement keyword.
// When none match, the whole response is treated as SQL.
//
// Statements starting with a write verb are returned as-is so the validator
// can reject them with a reason instead of the agent silently dropping them.
func ExtractSQL(response string) string {
	text := StripThinking(response)

	if m := fencedBlockPattern.FindStringSubmatch(text); m != nil {
		return CleanSQL(m[1])
	}

	if m := inlineCodePattern.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		upper := strings.ToUpper(candidate)
		if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") {
			return CleanSQL(candidate)
		}
	}

	if sql := statementLines(text); sql != "" {
		return CleanSQL(sql)
	}

	return CleanSQL(text)
}

// statementLines collects lines from the first one that opens a statement until
// a line ending in a semicolon or a blank line. Lines starting with # are skipped.
func statementLines(text string) string {
	var lines []string
	inSQL := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inSQL {
			if startsStatement(trimmed) {
				inSQL = true
				lines = append(lines, line)
				if strings.HasSuffix(trimmed, ";") {
					break
				}
			}
			continue
		}
		if trimmed == "" {
			break
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, line)
		if strings.HasSuffix(trimmed, ";") {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func startsStatement(line string) bool {
	upper := strings.ToUpper(line)
	for _, kw := range statementStarters {
		if !strings.HasPrefix(upper, kw) {
			continue
		}
		if len(upper) == len(kw) {
			return true
		}
		next := upper[len(kw)]
		if next == ' ' || next == '\t' || next == '(' || next == '*' {
			return true
		}
	}
	return false
}
