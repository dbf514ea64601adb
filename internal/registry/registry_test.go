package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ringdb/internal/objectmodel"
)

func TestGetSetRoundTrip(t *testing.T) {
	r := New(time.Minute, 0)
	obj := &objectmodel.WebObject{ID: 1, Data: map[string]objectmodel.Value{"n": objectmodel.StringValue("a")}}

	require.NoError(t, r.Set(obj))
	got := r.Get(1)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Data["n"].String)

	assert.Nil(t, r.Get(999))
}

func TestSetRejectsUnassignedID(t *testing.T) {
	r := New(time.Minute, 0)
	err := r.Set(&objectmodel.WebObject{Data: map[string]objectmodel.Value{}})
	assert.Error(t, err)
}

func TestPurgeEvictsExpiredNonRoot(t *testing.T) {
	r := New(time.Millisecond, 0)
	require.NoError(t, r.Set(&objectmodel.WebObject{ID: 1}))
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, r.Purge())
	assert.Nil(t, r.Get(1))
	assert.Equal(t, 0, r.Len())
}

func TestPurgeReloadsRootInsteadOfEvicting(t *testing.T) {
	r := New(time.Millisecond, 0)
	require.NoError(t, r.Set(&objectmodel.WebObject{ID: 7, Version: 1}))

	reloadCalls := 0
	r.PinRoot(7, func(id int64) (*objectmodel.WebObject, error) {
		reloadCalls++
		return &objectmodel.WebObject{ID: id, Version: 2}, nil
	})

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, r.Purge())

	assert.Equal(t, 1, reloadCalls)
	got := r.Get(7)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Version)
}

func TestPurgeHonorsMinimumInterPurgeDelay(t *testing.T) {
	r := New(time.Millisecond, time.Hour)
	require.NoError(t, r.Set(&objectmodel.WebObject{ID: 1}))
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, r.Purge())
	assert.Nil(t, r.Get(1), "first purge after expiry should evict")

	require.NoError(t, r.Set(&objectmodel.WebObject{ID: 2}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, r.Purge())
	assert.NotNil(t, r.Get(2), "second purge within the minimum gap should be a no-op")
}

func TestDropRemovesRegardlessOfExpiry(t *testing.T) {
	r := New(time.Hour, 0)
	require.NoError(t, r.Set(&objectmodel.WebObject{ID: 1}))
	r.Drop(1)
	assert.Nil(t, r.Get(1))
}
