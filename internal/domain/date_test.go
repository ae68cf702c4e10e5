package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  Date
	}{
		{input: "2025-10-20", want: NewDate(2025, time.October, 20)},
		{input: " 2025-10-20 ", want: NewDate(2025, time.October, 20)},
		{input: "2025-10-20T23:30:00", want: NewDate(2025, time.October, 20)},
		{input: "2025-10-20T08:00:00+05:30", want: NewDate(2025, time.October, 20)},
		{input: "2025-10-20T08:00:00.123Z", want: NewDate(2025, time.October, 20)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "tomorrow", "20-10-2025"} {
		_, err := ParseDate(input)
		assert.Error(t, err, input)
	}
}

func TestDaysUntilCountsCalendarDays(t *testing.T) {
	start := NewDate(2025, time.March, 28)

	assert.Equal(t, 0, start.DaysUntil(start))
	assert.Equal(t, 4, start.DaysUntil(NewDate(2025, time.April, 1)))
	assert.Equal(t, -28, start.DaysUntil(NewDate(2025, time.February, 28)))
	assert.Equal(t, 366, NewDate(2024, time.January, 1).DaysUntil(NewDate(2025, time.January, 1)))
}

func TestDaysUntilFarApartDates(t *testing.T) {
	start := NewDate(2025, time.January, 1)
	end := NewDate(2400, time.January, 1)

	assert.Equal(t, 136965, start.DaysUntil(end))
	assert.Equal(t, -136965, end.DaysUntil(start))
}

func TestDateInUsesLocation(t *testing.T) {
	instant := time.Date(2025, time.June, 1, 20, 0, 0, 0, time.UTC)
	plusSix := time.FixedZone("UTC+6", 6*60*60)

	assert.Equal(t, NewDate(2025, time.June, 1), DateIn(instant, time.UTC))
	assert.Equal(t, NewDate(2025, time.June, 2), DateIn(instant, plusSix))
	assert.Equal(t, NewDate(2025, time.June, 1), DateIn(instant, nil))
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Journey Date `json:"journey"`
		Missing Date `json:"missing"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"journey":"2025-12-24T10:15:00","missing":null}`), &payload))
	assert.Equal(t, NewDate(2025, time.December, 24), payload.Journey)
	assert.True(t, payload.Missing.IsZero())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"journey":"2025-12-24","missing":null}`, string(out))
}

func TestParseTicketStatus(t *testing.T) {
	assert.Equal(t, TicketStatusConfirmed, ParseTicketStatus("confirmed"))
	assert.Equal(t, TicketStatusCancelled, ParseTicketStatus("CANCELED"))
	assert.Equal(t, TicketStatusCancelled, ParseTicketStatus(" Cancelled "))
	assert.Equal(t, TicketStatusPending, ParseTicketStatus("PENDING"))
	assert.Equal(t, TicketStatusUnknown, ParseTicketStatus("on_hold"))
}
