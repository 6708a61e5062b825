package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	m := NewMemory(time.Minute)

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Set("k", []byte("v"), time.Minute)
	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	m.Delete("k")
	_, ok = m.Get("k")
	assert.False(t, ok)
}

func TestMemory_TTLExpiry(t *testing.T) {
	m := NewMemory(time.Minute)
	m.Set("k", []byte("v"), 20*time.Millisecond)

	_, ok := m.Get("k")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = m.Get("k")
	assert.False(t, ok)
}

func TestMemory_DeletePrefix(t *testing.T) {
	m := NewMemory(time.Minute)
	m.Set("calconfig:t1:a1", []byte("1"), time.Minute)
	m.Set("calconfig:t1:a2", []byte("2"), time.Minute)
	m.Set("other:t1", []byte("3"), time.Minute)

	m.DeletePrefix("calconfig:")

	_, ok := m.Get("calconfig:t1:a1")
	assert.False(t, ok)
	_, ok = m.Get("calconfig:t1:a2")
	assert.False(t, ok)
	got, ok := m.Get("other:t1")
	require.True(t, ok)
	assert.Equal(t, []byte("3"), got)
}
