package game

import (
	"fmt"
	"math/rand"

	"github.com/andrewchart/final-rendezvous-game/internal/ident"
)

const (
	deckSize          = 40
	doubleAgentCount  = 2
	startTurnActions  = 3
	startPlayerIndex  = 0
	minStartedPlayers = 1
)

// StartFields rolls the play state written when a pending session starts:
// target city and codeword come from the caller (drawn from reference data),
// double agents are picked from the current players, and the deck is a
// shuffled run of card ids. The result is a field-set merged into the same
// write that flips hasStarted.
func StartFields(s *Session, cityID int, codeword string) (map[string]any, error) {
	if len(s.Players) < minStartedPlayers {
		return nil, fmt.Errorf("game: cannot start %s without players", s.ID)
	}

	agents := doubleAgentCount
	if agents > len(s.Players) {
		agents = len(s.Players)
	}
	doubleAgents, err := ident.DistinctInts(0, len(s.Players)-1, agents)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"hasStarted":           true,
		"doubleAgents":         doubleAgents,
		"targetCityId":         cityID,
		"targetCodeword":       codeword,
		"deck":                 NewDeck(),
		"currentPlayerIndex":   startPlayerIndex,
		"turnActionsRemaining": startTurnActions,
	}, nil
}

// NewDeck returns the card ids 1..deckSize in shuffled order.
func NewDeck() []int {
	deck := make([]int, deckSize)
	for i := range deck {
		deck[i] = i + 1
	}
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
