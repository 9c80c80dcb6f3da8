package bot

import (
	"fmt"
	"strings"

	"todobot/internal/storage"
)

func formatTaskLine(t storage.Task) string {
	status := "❌"
	if t.Done {
		status = "✅"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d. %s", status, t.ID, t.Text)
	if t.Category != "" {
		fmt.Fprintf(&b, " #%s", t.Category)
	}
	if t.Deadline != nil {
		fmt.Fprintf(&b, " (due %s)", t.Deadline.Format(dateLayout))
	}
	return b.String()
}

func formatTaskList(header string, tasks []storage.Task) string {
	var b strings.Builder
	b.WriteString(header)
	for _, t := range tasks {
		b.WriteByte('\n')
		b.WriteString(formatTaskLine(t))
	}
	return b.String()
}
