package expression

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vjeantet/jodaTime"
)

// DefaultDateFormat is used when a date placeholder names no format.
const DefaultDateFormat = "MM/dd/yyyy"

var deltaPattern = regexp.MustCompile(`([+-])(\d+)(\w)`)

// Dates registers today, BOM, BONM, BOY and BONY. Each is anchored on the
// clock's current local time and keeps its time of day.
func Dates(clock func() time.Time) Set {
	if clock == nil {
		clock = time.Now
	}
	anchored := func(anchor func(time.Time) time.Time) Resolver {
		return func(args string) (string, error) {
			return ResolveDate(anchor(clock()), args)
		}
	}
	return NewSet(map[string]Resolver{
		"today": anchored(func(t time.Time) time.Time { return t }),
		"BOM": anchored(func(t time.Time) time.Time {
			return withDay(t, t.Year(), t.Month(), 1)
		}),
		"BONM": anchored(func(t time.Time) time.Time {
			return addMonths(withDay(t, t.Year(), t.Month(), 1), 1)
		}),
		"BOY": anchored(func(t time.Time) time.Time {
			return withDay(t, t.Year(), time.January, 1)
		}),
		"BONY": anchored(func(t time.Time) time.Time {
			return withDay(t, t.Year()+1, time.January, 1)
		}),
	})
}

// ResolveDate applies the delta tokens of args to t and formats the result.
// args looks like "+1M-3d:yyyy-MM-dd"; both parts are optional.
func ResolveDate(t time.Time, args string) (string, error) {
	deltas, format, hasFormat := strings.Cut(args, ":")
	if !hasFormat {
		format = DefaultDateFormat
	}

	for _, m := range deltaPattern.FindAllStringSubmatch(deltas, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", fmt.Errorf("%w: %s in %s", ErrBadDateUnit, m[2], args)
		}
		if m[1] == "-" {
			n = -n
		}
		switch m[3] {
		case "m":
			t = addClock(t, time.Duration(n)*time.Minute)
		case "H":
			t = addClock(t, time.Duration(n)*time.Hour)
		case "d":
			t = withDay(t, t.Year(), t.Month(), t.Day()+n)
		case "M":
			t = addMonths(t, n)
		case "y":
			t = addMonths(t, 12*n)
		default:
			return "", fmt.Errorf("%w: %s in %s", ErrBadDateUnit, m[3], args)
		}
	}

	return FormatDate(t, format)
}

// withDay rebuilds t on another date with the same wall clock.
func withDay(t time.Time, year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addClock moves the wall clock, ignoring zone transitions.
func addClock(t time.Time, d time.Duration) time.Time {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC).Add(d)
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), t.Location())
}

// addMonths clamps the day to the end of the target month, so Jan 31 plus
// one month is the last day of February.
func addMonths(t time.Time, n int) time.Time {
	total := int(t.Month()) - 1 + n
	year := t.Year() + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return withDay(t, year, month, day)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// patternLetters are the Joda pattern letters FormatDate accepts.
const patternLetters = "GCYxweEyDMdaKhHkmsSzZ"

// FormatDate renders t with a Joda pattern such as "MM/dd/yyyy HH:mm". Text
// in single quotes is copied literally and '' stands for a quote.
func FormatDate(t time.Time, pattern string) (string, error) {
	var sb strings.Builder
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			sb.WriteString(jodaTime.Format(run.String(), t))
			run.Reset()
		}
	}

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\'':
			flush()
			if i+1 < len(runes) && runes[i+1] == '\'' {
				sb.WriteRune('\'')
				i++
				continue
			}
			end := i + 1
			for ; end < len(runes); end++ {
				if runes[end] != '\'' {
					sb.WriteRune(runes[end])
					continue
				}
				if end+1 < len(runes) && runes[end+1] == '\'' {
					sb.WriteRune('\'')
					end++
					continue
				}
				break
			}
			if end >= len(runes) {
				return "", fmt.Errorf("%w: unterminated quote in %q", ErrBadDateFormat, pattern)
			}
			i = end
		case isLetter(c) && !strings.ContainsRune(patternLetters, c):
			return "", fmt.Errorf("%w: unknown pattern letter %c in %q", ErrBadDateFormat, c, pattern)
		case isLetter(c):
			run.WriteRune(c)
		default:
			flush()
			sb.WriteRune(c)
		}
	}
	flush()
	return sb.String(), nil
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
