package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type addArgs struct {
	Text     string
	Category string
	Deadline *time.Time
}

// parseAddArgs splits "/add" arguments into task text plus optional
// markers: "#category" and "@YYYY-MM-DD" tokens may appear anywhere and
// are removed from the text.
//
//	/add Buy milk #home @2026-09-01
func parseAddArgs(raw string) (addArgs, error) {
	var out addArgs

	fields := strings.Fields(raw)
	text := make([]string, 0, len(fields))
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "#") && len(f) > 1 && out.Category == "":
			out.Category = f[1:]
		case strings.HasPrefix(f, "@") && len(f) > 1 && out.Deadline == nil:
			d, err := parseDate(f[1:])
			if err != nil {
				return addArgs{}, err
			}
			out.Deadline = &d
		default:
			text = append(text, f)
		}
	}

	out.Text = strings.Join(text, " ")
	if out.Text == "" {
		return addArgs{}, fmt.Errorf("task text is empty")
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("task id must be a positive number")
	}
	return id, nil
}
