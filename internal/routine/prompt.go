package routine

import "fmt"

// FormatPrompt renders the generation request for one routine. The shape is
// deliberately rigid: one activity per line with no title, so that the line
// processor can recover individual activities from the response.
func FormatPrompt(category, difficulty string, durationPerDay int) string {
	return fmt.Sprintf(`Please give me a concise daily routine for personal growth with the following properties
  - %s
  - %d minutes per day
  - %s difficulty
  - one line per activity
  - no title`, category, durationPerDay, difficulty)
}
