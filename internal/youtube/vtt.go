package youtube

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
)

// MaxTranscriptChars caps transcript length before it reaches the LLM.
const MaxTranscriptChars = 15000

const truncatedSuffix = "... (truncated)"

var inlineTag = regexp.MustCompile(`<[^>]*>`)

// ParseVTT flattens a WebVTT subtitle stream into plain text. The header,
// cue timings, numeric cue ids and repeated lines are dropped.
func ParseVTT(r io.Reader) (string, error) {
	var lines []string
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.Contains(line, "WEBVTT") || strings.Contains(line, "-->") || isDigits(line) {
			continue
		}
		line = strings.TrimSpace(inlineTag.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read subtitles: %w", err)
	}

	return truncate(strings.Join(lines, " "), MaxTranscriptChars), nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + truncatedSuffix
}

func isDigits(s string) bool {
	for _, c := range s {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return s != ""
}
