// Package temporal extracts date/time references from free text,
// producing a cleaned task title and an optional due date.
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Result is the outcome of one extraction. Due is nil when no temporal
// expression resolved; extraction never fails.
type Result struct {
	Title   string
	Due     *time.Time
	Matched string
}

var (
	reDuration = regexp.MustCompile(`(?i)\b(?:in|next|after)\s+(\d+|one|two|three|four|five|six|seven|eight|nine|ten|fifteen|twenty|thirty|forty|fifty|sixty)\s*(?:minutes|minute|mins|min)\b`)

	reClockTime = regexp.MustCompile(`(?i)\b(?:(?:at|by|around)\s+)?(\d{1,2})(?::([0-5]\d))?\s*(am|pm)\b`)
	re24Time    = regexp.MustCompile(`(?i)\b(?:(?:at|by|around)\s+)?([01]?\d|2[0-3]):([0-5]\d)\b`)

	reWeekdayMod = regexp.MustCompile(`(?i)\b(next|coming|this)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)

	reKeywordDate = regexp.MustCompile(`(?i)\b(?:due|by|on|for|at)\s+(` +
		`today|tonight|tomorrow` +
		`|(?:(?:next|coming|this)\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)` +
		`|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s*\d{4})?` +
		`|\d{1,2}(?:st|nd|rd|th)?\s+of\s+(?:january|february|march|april|may|june|july|august|september|october|november|december)` +
		`|\d{1,2}/\d{1,2}(?:/\d{2,4})?` +
		`)\b`)

	reRelWord = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow)\b`)
	reWeekday = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)

	reSpaces = regexp.MustCompile(`\s+`)
)

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"fifteen": 15, "twenty": 20, "thirty": 30, "forty": 40,
	"fifty": 50, "sixty": 60,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// titleFillers are stripped once from the front of a cleaned title.
var titleFillers = []string{
	"remind me to ",
	"remember to ",
	"don't forget to ",
	"i need to ",
	"i have to ",
	"i want to ",
	"please ",
}

// Extract parses text for temporal expressions relative to now. The
// matchers run as an ordered cascade; the first rule that resolves a
// date wins. Duration shorthand beats keyword-anchored dates beats
// standalone dates: more specific, time-sensitive phrasing must not be
// shadowed by a looser match elsewhere in the sentence.
func Extract(text string, now time.Time) Result {
	working := strings.TrimSpace(text)

	// Rule 1: relative-duration shorthand ("in 5 minutes").
	if m := reDuration.FindStringSubmatchIndex(working); m != nil {
		n := parseNumber(working[m[2]:m[3]])
		due := now.Add(time.Duration(n) * time.Minute)
		matched := working[m[0]:m[1]]
		return finish(cut(working, m[0], m[1]), &due, matched)
	}

	// Rule 2: explicit time-of-day, extracted and held until a date
	// resolves (or applied to today).
	var (
		heldHour, heldMin int
		heldTime          bool
		matched           []string
	)
	if m := reClockTime.FindStringSubmatchIndex(working); m != nil {
		hour, _ := strconv.Atoi(working[m[2]:m[3]])
		minute := 0
		if m[4] >= 0 {
			minute, _ = strconv.Atoi(working[m[4]:m[5]])
		}
		if hour <= 12 {
			heldHour = to24Hour(hour, strings.ToLower(working[m[6]:m[7]]))
			heldMin = minute
			heldTime = true
			matched = append(matched, working[m[0]:m[1]])
			working = cut(working, m[0], m[1])
		}
	} else if m := re24Time.FindStringSubmatchIndex(working); m != nil {
		heldHour, _ = strconv.Atoi(working[m[2]:m[3]])
		heldMin, _ = strconv.Atoi(working[m[4]:m[5]])
		heldTime = true
		matched = append(matched, working[m[0]:m[1]])
		working = cut(working, m[0], m[1])
	}

	var due *time.Time
	tonight := false

	// Rule 3: weekday with modifier ("next wednesday", "this friday").
	if m := reWeekdayMod.FindStringSubmatchIndex(working); m != nil {
		mod := strings.ToLower(working[m[2]:m[3]])
		wd := weekdays[strings.ToLower(working[m[4]:m[5]])]
		d := resolveWeekday(now, wd, mod)
		due = &d
		matched = append(matched, working[m[0]:m[1]])
		working = cut(working, m[0], m[1])
	}

	// Rule 4: keyword-anchored date ("by tomorrow", "on june 5").
	// The first keyword in textual order wins; everything before it is
	// the title candidate. A phrase that matches the shape but does not
	// resolve to a real date ("by 25/80") is left for the standalone
	// rules to pick over.
	if due == nil {
		if m := reKeywordDate.FindStringSubmatchIndex(working); m != nil {
			phrase := working[m[2]:m[3]]
			if d, ok := resolveDatePhrase(phrase, now); ok {
				due = &d
				tonight = strings.EqualFold(phrase, "tonight")
				matched = append(matched, working[m[0]:m[1]])
				working = strings.TrimSpace(working[:m[0]])
			}
		}
	}

	// Rule 5: standalone relative date or weekday anywhere.
	if due == nil {
		if m := reRelWord.FindStringSubmatchIndex(working); m != nil {
			word := strings.ToLower(working[m[2]:m[3]])
			d := resolveRelativeWord(word, now)
			due = &d
			tonight = word == "tonight"
			matched = append(matched, working[m[0]:m[1]])
			working = cut(working, m[0], m[1])
		} else if m := reWeekday.FindStringSubmatchIndex(working); m != nil {
			wd := weekdays[strings.ToLower(working[m[2]:m[3]])]
			d := resolveWeekday(now, wd, "this")
			due = &d
			matched = append(matched, working[m[0]:m[1]])
			working = cut(working, m[0], m[1])
		}
	}

	// Rule 6: merge a held time-of-day onto the resolved date, or onto
	// today when nothing else resolved.
	if heldTime {
		base := now
		if due != nil {
			base = *due
		}
		d := time.Date(base.Year(), base.Month(), base.Day(), heldHour, heldMin, 0, 0, base.Location())
		due = &d
	} else if tonight {
		d := due.Add(20 * time.Hour)
		due = &d
	}

	return finish(working, due, strings.Join(matched, " "))
}

// to24Hour converts a 12-hour clock reading: PM adds 12 unless the hour
// is already >= 12; 12 AM maps to hour 0.
func to24Hour(hour int, meridiem string) int {
	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour
}

func parseNumber(s string) int {
	s = strings.ToLower(s)
	if n, ok := wordNumbers[s]; ok {
		return n
	}
	n, _ := strconv.Atoi(s)
	return n
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// resolveWeekday finds the target weekday relative to now. "next" and
// "coming" land 7+ days out; "this" is the occurrence this week,
// rolling to next week when the day has already passed.
func resolveWeekday(now time.Time, target time.Weekday, modifier string) time.Time {
	delta := (int(target) - int(now.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	if modifier == "next" || modifier == "coming" {
		delta += 7
	}
	return startOfDay(now).AddDate(0, 0, delta)
}

func resolveRelativeWord(word string, now time.Time) time.Time {
	switch word {
	case "tomorrow":
		return startOfDay(now).AddDate(0, 0, 1)
	default: // today, tonight
		return startOfDay(now)
	}
}

// resolveDatePhrase resolves the date portion of a keyword-anchored
// match: a relative word, an optionally-modified weekday, a month-name
// date, or a numeric MM/DD(/YYYY).
func resolveDatePhrase(phrase string, now time.Time) (time.Time, bool) {
	p := strings.ToLower(strings.TrimSpace(phrase))

	switch p {
	case "today", "tonight", "tomorrow":
		return resolveRelativeWord(p, now), true
	}

	fields := strings.Fields(p)
	if len(fields) == 2 {
		if wd, ok := weekdays[fields[1]]; ok {
			return resolveWeekday(now, wd, fields[0]), true
		}
	}
	if len(fields) == 1 {
		if wd, ok := weekdays[fields[0]]; ok {
			return resolveWeekday(now, wd, "this"), true
		}
	}

	// "june 5" / "june 5th, 2026"
	if len(fields) >= 2 {
		if month, ok := months[fields[0]]; ok {
			day := parseDayNumber(fields[1])
			year := now.Year()
			if len(fields) >= 3 {
				if y, err := strconv.Atoi(strings.Trim(fields[2], ",")); err == nil {
					year = y
				}
			}
			if day > 0 {
				return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), true
			}
		}
	}

	// "5th of june"
	if len(fields) == 3 && fields[1] == "of" {
		if month, ok := months[fields[2]]; ok {
			if day := parseDayNumber(fields[0]); day > 0 {
				return time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location()), true
			}
		}
	}

	// "6/15" or "6/15/2026"
	if strings.Contains(p, "/") {
		parts := strings.Split(p, "/")
		if len(parts) >= 2 {
			month, err1 := strconv.Atoi(parts[0])
			day, err2 := strconv.Atoi(parts[1])
			if err1 == nil && err2 == nil && month >= 1 && month <= 12 && day >= 1 && day <= 31 {
				year := now.Year()
				if len(parts) == 3 {
					if y, err := strconv.Atoi(parts[2]); err == nil {
						if y < 100 {
							y += 2000
						}
						year = y
					}
				}
				return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location()), true
			}
		}
	}

	return time.Time{}, false
}

func parseDayNumber(s string) int {
	s = strings.TrimSuffix(s, ",")
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		s = strings.TrimSuffix(s, suffix)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 31 {
		return 0
	}
	return n
}

// cut removes s[start:end] and normalizes the surrounding whitespace.
// An anchor keyword left dangling immediately before the span goes with
// it ("dinner on next friday" -> "dinner"); words further away are
// untouched, so verb particles survive ("check in tomorrow").
func cut(s string, start, end int) string {
	head := strings.TrimSpace(s[:start])
	if fields := strings.Fields(head); len(fields) > 0 {
		switch strings.ToLower(fields[len(fields)-1]) {
		case "due", "by", "on", "for", "at":
			head = strings.Join(fields[:len(fields)-1], " ")
		}
	}
	return strings.TrimSpace(reSpaces.ReplaceAllString(head+" "+s[end:], " "))
}

// finish applies the title post-processing that runs regardless of
// which rule fired: whitespace, one leading filler phrase,
// capitalization.
func finish(title string, due *time.Time, matched string) Result {
	title = strings.TrimSpace(reSpaces.ReplaceAllString(title, " "))
	title = strings.Trim(title, " ,.")

	lower := strings.ToLower(title)
	for _, filler := range titleFillers {
		if strings.HasPrefix(lower, filler) {
			title = strings.TrimSpace(title[len(filler):])
			break
		}
	}

	title = capitalize(title)

	return Result{Title: title, Due: due, Matched: matched}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
