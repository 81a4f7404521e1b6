package routine

import "strings"

// ProcessResponse splits raw generator output into one activity per line.
// Each line is trimmed and stripped of a leading single-digit ordinal
// marker ("1. " or "1 ") or bullet marker ("- "); blank lines are dropped.
func ProcessResponse(response string) []string {
	lines := strings.Split(response, "\n")
	activities := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = stripLineMarker(line)
		if line == "" {
			continue
		}
		activities = append(activities, line)
	}
	return activities
}

func stripLineMarker(line string) string {
	if len(line) >= 2 && isDigit(line[0]) {
		if line[1] == '.' {
			return strings.TrimSpace(line[2:])
		}
		if line[1] == ' ' {
			return strings.TrimSpace(line[1:])
		}
	}
	if strings.HasPrefix(line, "-") {
		return strings.TrimSpace(line[1:])
	}
	return line
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
