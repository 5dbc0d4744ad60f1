// Package ident allocates the short identifiers used by game sessions: the
// 4-letter room code players share, and the per-session numeric player ids.
package ident

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	mrand "math/rand"
	"slices"
)

// Alphabet deliberately omits vowels so a room code can't spell anything.
const Alphabet = "BCDFGHJKLMNPQRSTVWXYZ"

const (
	CodeLength = 4

	PlayerIDMin = 100
	PlayerIDMax = 999

	maxAttempts = 100
)

// ErrExhausted is returned when repeated draws fail to find an unused id
// within the attempt bound. Callers treat it as a fatal server error.
var ErrExhausted = errors.New("ident: gave up generating a unique id")

// GameID draws 4-letter codes until one is free according to taken, giving up
// after 100 attempts. The check-then-insert race is accepted for this
// workload: the code space is ~194k combinations and a losing insert still
// fails at the store's primary index rather than clobbering a session.
func GameID(ctx context.Context, taken func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		used, err := taken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("probing game id %q: %w", code, err)
		}
		if !used {
			return code, nil
		}
	}
	return "", ErrExhausted
}

func randomCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(Alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = Alphabet[n.Int64()]
	}
	return string(code), nil
}

// PlayerID draws a 3-digit id not already present among existing. The scan is
// linear; a session never holds more than a handful of players.
func PlayerID(existing []int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		id := mrand.Intn(PlayerIDMax-PlayerIDMin+1) + PlayerIDMin
		if !slices.Contains(existing, id) {
			return id, nil
		}
	}
	return 0, ErrExhausted
}

// ResolveName returns requested unchanged if no existing name matches exactly,
// otherwise appends " (N)" for the first N that is unused. Never fails.
func ResolveName(requested string, existing []string) string {
	name := requested
	for n := 1; slices.Contains(existing, name); n++ {
		name = fmt.Sprintf("%s (%d)", requested, n)
	}
	return name
}

// DistinctInts returns n distinct random integers in [min,max], in the random
// order they were drawn. Errors when the range is too small to satisfy n.
func DistinctInts(min, max, n int) ([]int, error) {
	if min > max {
		return nil, errors.New("ident: max must not be smaller than min")
	}
	if max-min+1 < n {
		return nil, fmt.Errorf("ident: cannot draw %d distinct ints between %d and %d", n, min, max)
	}

	out := make([]int, 0, n)
	for len(out) < n {
		r := mrand.Intn(max-min+1) + min
		if slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
