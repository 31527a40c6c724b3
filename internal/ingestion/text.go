package ingestion

import (
	"regexp"
	"strings"
)

var (
	innerSpaceRe  = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	bulletMarkers = []string{"- ", "* ", "• ", "· "}
)

// CleanText normalizes extracted text: line endings become LF, runs of spaces collapse,
// trailing whitespace is dropped and no more than one blank line is kept in a row.
// Bullet markers and leading indentation survive.
func CleanText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, "\x00", "")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(line)
	}

	result := blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(result)
}

func cleanLine(line string) string {
	line = strings.TrimRight(line, " \t")
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return ""
	}

	indent := len(line) - len(trimmed)
	body := innerSpaceRe.ReplaceAllString(trimmed, " ")
	if isBulletLine(trimmed) {
		// keep the marker intact, only collapse what follows it
		for _, marker := range bulletMarkers {
			if strings.HasPrefix(trimmed, marker) {
				body = marker + innerSpaceRe.ReplaceAllString(strings.TrimLeft(trimmed[len(marker):], " \t"), " ")
				break
			}
		}
	}

	if indent > 0 {
		return strings.Repeat(" ", indent) + body
	}
	return body
}

func isBulletLine(line string) bool {
	for _, marker := range bulletMarkers {
		if strings.HasPrefix(line, marker) {
			return true
		}
	}
	return false
}
