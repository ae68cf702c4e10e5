package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperRejectsInvalidSchedule(t *testing.T) {
	f := newFixture(t, Options{})
	sweeper := NewSweeper(f.service, "every now and then")

	assert.Error(t, sweeper.Start())
}

func TestSweeperRunExpiresViews(t *testing.T) {
	f := newFixture(t, Options{ViewTTL: time.Minute})
	_, err := f.service.Open(context.Background(), asha, "BK-42")
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(2 * time.Minute)
	NewSweeper(f.service, "@every 1m").run()

	assert.Equal(t, 0, f.service.views.Len())
}
