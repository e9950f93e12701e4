package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/probe"
)

func TestNewCollector_DefaultTimeout(t *testing.T) {
	c := NewCollector(&fakeBackend{}, 0, nil)
	assert.Equal(t, DefaultCollectTimeout, c.Timeout())

	c = NewCollector(&fakeBackend{}, 2*time.Second, nil)
	assert.Equal(t, 2*time.Second, c.Timeout())
}

func TestCollect(t *testing.T) {
	backend := testBackend()
	c := NewCollector(backend, time.Second, nil)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return at }

	snap := c.Collect(context.Background())

	require.NoError(t, snap.Err)
	assert.Len(t, snap.Cards, 4)
	assert.Equal(t, "Operations", snap.Groups["ops"])
	assert.Equal(t, probe.StatusUp, snap.Health["grafana"].Status)
	assert.Equal(t, int64(1000), snap.HealthAt)
	assert.Equal(t, at, snap.At)

	require.NotNil(t, backend.lastQuery.Enabled)
	assert.True(t, *backend.lastQuery.Enabled)
}

func TestCollect_CardsError(t *testing.T) {
	backend := testBackend()
	backend.cardsErr = errors.New(errors.ErrTransport, "server unreachable", "")

	snap := NewCollector(backend, time.Second, nil).Collect(context.Background())

	assert.Nil(t, snap.Cards)
	assert.True(t, errors.IsCode(snap.Err, errors.ErrTransport))
	assert.Empty(t, snap.Health)
}

func TestCollect_PartialFailures(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		backend := testBackend()
		backend.healthErr = errors.New(errors.ErrAuth, "unauthorized", "")

		snap := NewCollector(backend, time.Second, nil).Collect(context.Background())

		assert.Len(t, snap.Cards, 4)
		assert.True(t, errors.IsCode(snap.Err, errors.ErrAuth))
	})

	t.Run("groups", func(t *testing.T) {
		backend := testBackend()
		backend.groups = nil
		backend.groupsErr = errors.New(errors.ErrServer, "boom", "")

		snap := NewCollector(backend, time.Second, nil).Collect(context.Background())

		assert.Len(t, snap.Cards, 4)
		assert.Empty(t, snap.Groups)
		assert.True(t, errors.IsCode(snap.Err, errors.ErrServer))
	})
}

func TestSnapshot_Helpers(t *testing.T) {
	snap := NewCollector(testBackend(), time.Second, nil).Collect(context.Background())

	assert.Equal(t, 1, snap.UpCount())
	assert.Equal(t, probe.StatusDown, snap.HealthOf("docs").Status)

	unknown := snap.HealthOf("emby")
	assert.Equal(t, "emby", unknown.CardID)
	assert.Equal(t, probe.StatusUnknown, unknown.Status)
}
