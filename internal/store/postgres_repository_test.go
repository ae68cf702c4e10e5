package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEntry(t *testing.T) {
	now := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.FixedZone("IST", 19800))

	entry, err := normalizeEntry(AuditEntry{
		BookingID: "  BK-1 ",
		Subject:   "asha",
		Event:     EventOTPRequested,
		Detail:    strings.Repeat("x", maxDetailLength+10),
	}, now)
	require.NoError(t, err)
	assert.Equal(t, "BK-1", entry.BookingID)
	assert.Len(t, entry.Detail, maxDetailLength)
	assert.Equal(t, now.UTC(), entry.OccurredAt)
	assert.Equal(t, time.UTC, entry.OccurredAt.Location())
}

func TestNormalizeEntryRejectsIncompleteEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry AuditEntry
	}{
		{name: "missing booking", entry: AuditEntry{Subject: "asha", Event: EventViewOpened}},
		{name: "missing subject", entry: AuditEntry{BookingID: "BK-1", Event: EventViewOpened}},
		{name: "missing event", entry: AuditEntry{BookingID: "BK-1", Subject: "asha"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeEntry(tt.entry, time.Now())
			assert.ErrorIs(t, err, ErrInvalidAuditEntry)
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultHistoryLimit, clampLimit(0))
	assert.Equal(t, defaultHistoryLimit, clampLimit(-3))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, maxHistoryLimit, clampLimit(5000))
}

func TestNoopRepository(t *testing.T) {
	var repo AuditRepository = NoopRepository{}
	require.NoError(t, repo.Record(context.Background(), AuditEntry{}))

	entries, err := repo.ListByBooking(context.Background(), "BK-1", "asha", 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresRepositoryRoundTrip(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewPostgresRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	bookingID := "BK-" + time.Now().Format("150405.000000")
	base := time.Now().Add(-time.Minute)
	require.NoError(t, repo.Record(ctx, AuditEntry{ViewID: "v1", Subject: "asha", BookingID: bookingID, Event: EventViewOpened, OccurredAt: base}))
	require.NoError(t, repo.Record(ctx, AuditEntry{ViewID: "v1", Subject: "asha", BookingID: bookingID, Event: EventOTPRequested, State: "OTP_REQUESTED", OccurredAt: base.Add(time.Second)}))
	require.NoError(t, repo.Record(ctx, AuditEntry{Subject: "someone-else", BookingID: bookingID, Event: EventViewOpened}))

	entries, err := repo.ListByBooking(ctx, bookingID, "asha", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventOTPRequested, entries[0].Event)
	assert.Equal(t, "OTP_REQUESTED", entries[0].State)
	assert.Equal(t, EventViewOpened, entries[1].Event)
	assert.Equal(t, "", entries[1].State)
}
