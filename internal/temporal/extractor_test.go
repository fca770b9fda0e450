package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A fixed Monday so weekday arithmetic is deterministic.
var monday = time.Date(2026, time.June, 1, 10, 30, 0, 0, time.UTC)

func TestExtractDurationMinutes(t *testing.T) {
	res := Extract("remind me to call mom in 5 minutes", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "Call mom", res.Title)
	assert.Equal(t, monday.Add(5*time.Minute), *res.Due)
	assert.Equal(t, "in 5 minutes", res.Matched)
}

func TestExtractDurationWordNumber(t *testing.T) {
	res := Extract("check the oven in twenty minutes", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "Check the oven", res.Title)
	assert.Equal(t, monday.Add(20*time.Minute), *res.Due)
}

func TestExtractKeywordTomorrow(t *testing.T) {
	res := Extract("pay rent by tomorrow", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "Pay rent", res.Title)
	assert.Equal(t, time.Date(2026, time.June, 2, 0, 0, 0, 0, time.UTC), *res.Due)
}

func TestExtractNextWeekdayWithTime(t *testing.T) {
	res := Extract("meeting next wednesday at 3 pm", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "Meeting", res.Title)
	// "next" lands 7+ days out: Wednesday June 10, not June 3.
	assert.Equal(t, time.Date(2026, time.June, 10, 15, 0, 0, 0, time.UTC), *res.Due)
}

func TestExtractNoTemporalExpression(t *testing.T) {
	res := Extract("buy groceries", monday)

	assert.Nil(t, res.Due)
	assert.Equal(t, "Buy groceries", res.Title)
	assert.Empty(t, res.Matched)
}

func TestExtractThisWeekdayRollsWhenPassed(t *testing.T) {
	// From Monday, "this friday" is June 5.
	res := Extract("submit report this friday", monday)
	require.NotNil(t, res.Due)
	assert.Equal(t, time.Date(2026, time.June, 5, 0, 0, 0, 0, time.UTC), *res.Due)

	// From Saturday June 6, "this friday" has passed and rolls forward.
	saturday := time.Date(2026, time.June, 6, 9, 0, 0, 0, time.UTC)
	res = Extract("submit report this friday", saturday)
	require.NotNil(t, res.Due)
	assert.Equal(t, time.Date(2026, time.June, 12, 0, 0, 0, 0, time.UTC), *res.Due)
}

func TestExtractStandaloneWeekday(t *testing.T) {
	res := Extract("dentist appointment saturday", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "Dentist appointment", res.Title)
	assert.Equal(t, time.Date(2026, time.June, 6, 0, 0, 0, 0, time.UTC), *res.Due)
}

func TestExtractTonightDefaultsToEvening(t *testing.T) {
	res := Extract("take out the trash tonight", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "Take out the trash", res.Title)
	assert.Equal(t, time.Date(2026, time.June, 1, 20, 0, 0, 0, time.UTC), *res.Due)
}

func TestExtractTimeOnlyAppliesToToday(t *testing.T) {
	res := Extract("standup at 9:15 am", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "Standup", res.Title)
	assert.Equal(t, time.Date(2026, time.June, 1, 9, 15, 0, 0, time.UTC), *res.Due)
}

func TestExtractTwentyFourHourClock(t *testing.T) {
	res := Extract("catch the train at 18:45 tomorrow", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "Catch the train", res.Title)
	assert.Equal(t, time.Date(2026, time.June, 2, 18, 45, 0, 0, time.UTC), *res.Due)
}

func TestExtractMonthNameDate(t *testing.T) {
	res := Extract("renew passport on june 15", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "Renew passport", res.Title)
	assert.Equal(t, time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC), *res.Due)
}

func TestExtractNumericDate(t *testing.T) {
	res := Extract("file taxes by 7/15", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, "File taxes", res.Title)
	assert.Equal(t, time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC), *res.Due)
}

func TestExtractNoonAndMidnight(t *testing.T) {
	res := Extract("lunch at 12 pm", monday)
	require.NotNil(t, res.Due)
	assert.Equal(t, 12, res.Due.Hour())

	res = Extract("server restart at 12 am tomorrow", monday)
	require.NotNil(t, res.Due)
	assert.Equal(t, 0, res.Due.Hour())
	assert.Equal(t, 2, res.Due.Day())
}

func TestExtractStripsOneFillerPrefix(t *testing.T) {
	res := Extract("i need to water the plants tomorrow", monday)
	assert.Equal(t, "Water the plants", res.Title)

	// Only the outermost filler is stripped.
	res = Extract("please remind me to stretch", monday)
	assert.Equal(t, "Remind me to stretch", res.Title)
}

func TestExtractOrphanKeywordTrimmed(t *testing.T) {
	res := Extract("team sync at 4 pm", monday)

	assert.Equal(t, "Team sync", res.Title)
	require.NotNil(t, res.Due)
	assert.Equal(t, 16, res.Due.Hour())
}

func TestExtractDanglingAnchorRemoved(t *testing.T) {
	res := Extract("dinner on next friday", monday)

	assert.Equal(t, "Dinner", res.Title)
	require.NotNil(t, res.Due)
	assert.Equal(t, time.Date(2026, time.June, 12, 0, 0, 0, 0, time.UTC), *res.Due)
}

func TestExtractVerbParticleSurvives(t *testing.T) {
	// "in" next to the removed span is part of the verb, not an anchor.
	res := Extract("check in tomorrow", monday)

	assert.Equal(t, "Check in", res.Title)
	require.NotNil(t, res.Due)
	assert.Equal(t, time.Date(2026, time.June, 2, 0, 0, 0, 0, time.UTC), *res.Due)
}

func TestExtractBogusKeywordDateFallsThrough(t *testing.T) {
	// "25/80" has the numeric-date shape but is no calendar date; the
	// standalone "tomorrow" must still resolve.
	res := Extract("pay the invoice by 25/80 tomorrow", monday)

	require.NotNil(t, res.Due)
	assert.Equal(t, time.Date(2026, time.June, 2, 0, 0, 0, 0, time.UTC), *res.Due)
	assert.Equal(t, "Pay the invoice by 25/80", res.Title)
	assert.Equal(t, "tomorrow", res.Matched)
}

func TestExtractEmptyInput(t *testing.T) {
	res := Extract("", monday)

	assert.Nil(t, res.Due)
	assert.Empty(t, res.Title)
}

func TestExtractDeterministic(t *testing.T) {
	a := Extract("call the bank next tuesday at 10 am", monday)
	b := Extract("call the bank next tuesday at 10 am", monday)
	assert.Equal(t, a, b)
}
