package ident

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[BCDFGHJKLMNPQRSTVWXYZ]{4}$`)

func never(context.Context, string) (bool, error) { return false, nil }

func TestGameID_AlphabetAndLength(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GameID(context.Background(), never)
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
	}
}

func TestGameID_RetriesOnCollision(t *testing.T) {
	probes := 0
	taken := func(context.Context, string) (bool, error) {
		probes++
		return probes <= 3, nil
	}

	code, err := GameID(context.Background(), taken)
	require.NoError(t, err)
	assert.Regexp(t, codePattern, code)
	assert.Equal(t, 4, probes)
}

func TestGameID_ExhaustsAfterBoundedAttempts(t *testing.T) {
	probes := 0
	always := func(context.Context, string) (bool, error) {
		probes++
		return true, nil
	}

	_, err := GameID(context.Background(), always)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 100, probes)
}

func TestGameID_ProbeErrorStopsImmediately(t *testing.T) {
	boom := errors.New("store down")
	_, err := GameID(context.Background(), func(context.Context, string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestPlayerID_RangeAndUniqueness(t *testing.T) {
	existing := []int{100, 250, 999}
	for i := 0; i < 200; i++ {
		id, err := PlayerID(existing)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, id, PlayerIDMin)
		assert.LessOrEqual(t, id, PlayerIDMax)
		assert.NotContains(t, existing, id)
	}
}

func TestPlayerID_ExhaustsWhenNoneFree(t *testing.T) {
	existing := make([]int, 0, PlayerIDMax-PlayerIDMin+1)
	for id := PlayerIDMin; id <= PlayerIDMax; id++ {
		existing = append(existing, id)
	}

	_, err := PlayerID(existing)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestResolveName(t *testing.T) {
	assert.Equal(t, "Alice", ResolveName("Alice", nil))
	assert.Equal(t, "Alice (1)", ResolveName("Alice", []string{"Alice"}))
	assert.Equal(t, "Alice (2)", ResolveName("Alice", []string{"Alice", "Alice (1)"}))
	assert.Equal(t, "Bob", ResolveName("Bob", []string{"Alice", "Alice (1)"}))
}

func TestDistinctInts(t *testing.T) {
	got, err := DistinctInts(0, 7, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)

	seen := make(map[int]bool)
	for _, n := range got {
		assert.GreaterOrEqual(t, n, 0)
		assert.LessOrEqual(t, n, 7)
		assert.False(t, seen[n], "duplicate draw %d", n)
		seen[n] = true
	}
}

func TestDistinctInts_RangeTooSmall(t *testing.T) {
	_, err := DistinctInts(0, 2, 5)
	assert.Error(t, err)

	_, err = DistinctInts(5, 2, 1)
	assert.Error(t, err)
}
