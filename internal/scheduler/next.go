package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultHours are the local hours a report runs at.
var DefaultHours = []int{0, 6, 12, 18}

// NextFireTime returns the earliest configured hour strictly after now on
// now's day in loc, else the first configured hour of the following day.
func NextFireTime(now time.Time, hours []int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	hs := normalizeHours(hours)
	local := now.In(loc)
	y, m, d := local.Date()
	for _, h := range hs {
		candidate := time.Date(y, m, d, h, 0, 0, 0, loc)
		if candidate.After(local) {
			return candidate
		}
	}
	return time.Date(y, m, d+1, hs[0], 0, 0, 0, loc)
}

func normalizeHours(hours []int) []int {
	var hs []int
	seen := make(map[int]bool)
	for _, h := range hours {
		if h >= 0 && h < 24 && !seen[h] {
			seen[h] = true
			hs = append(hs, h)
		}
	}
	if len(hs) == 0 {
		return DefaultHours
	}
	sort.Ints(hs)
	return hs
}

// evenStep returns the spacing of hours when they are 0, n, 2n... covering the
// whole day, else 0.
func evenStep(hs []int) int {
	if len(hs) < 2 || hs[0] != 0 || 24%len(hs) != 0 {
		return 0
	}
	step := 24 / len(hs)
	for i, h := range hs {
		if h != i*step {
			return 0
		}
	}
	return step
}

// Expression renders hours as a cron expression, e.g. "0 */6 * * *".
func Expression(hours []int) string {
	hs := normalizeHours(hours)
	if step := evenStep(hs); step > 0 {
		return fmt.Sprintf("0 */%d * * *", step)
	}
	parts := make([]string, len(hs))
	for i, h := range hs {
		parts[i] = fmt.Sprint(h)
	}
	return "0 " + strings.Join(parts, ",") + " * * *"
}

// Describe renders hours for humans, in the API's language.
func Describe(hours []int) string {
	hs := normalizeHours(hours)
	clock := make([]string, len(hs))
	for i, h := range hs {
		clock[i] = fmt.Sprintf("%02d:00", h)
	}
	list := strings.Join(clock, ", ")
	if step := evenStep(hs); step > 0 {
		return fmt.Sprintf("Ejecuta reportes cada %d horas (%s)", step, list)
	}
	return fmt.Sprintf("Ejecuta reportes a las %s", list)
}
