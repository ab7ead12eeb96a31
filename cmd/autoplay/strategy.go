package main

import "github.com/wricardo/mcp-training/memorygame/game/service"

// Memory remembers every symbol seen on the board and never reveals a card
// twice when its partner is already known.
type Memory struct {
	seen map[string]string // card id -> symbol
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]string)}
}

// Reset forgets the previous board.
func (m *Memory) Reset() {
	clear(m.seen)
}

// Observe records the symbols of all face-up cards.
func (m *Memory) Observe(cards []service.CardView) {
	for _, c := range cards {
		if c.Value != "" {
			m.seen[c.ID] = c.Value
		}
	}
}

// Known reports how many cards have been seen.
func (m *Memory) Known() int {
	return len(m.seen)
}

func hidden(c service.CardView) bool {
	return !c.FaceUp && !c.Matched
}

// Next picks the card to reveal on a settled board. It returns false when no
// card can be revealed.
func (m *Memory) Next(cards []service.CardView) (string, bool) {
	var open *service.CardView
	for i := range cards {
		if cards[i].FaceUp && !cards[i].Matched {
			open = &cards[i]
			break
		}
	}

	if open != nil {
		if id := m.partner(cards, open.ID, open.Value); id != "" {
			return id, true
		}
		return m.unseen(cards)
	}

	if id := m.knownPair(cards); id != "" {
		return id, true
	}
	return m.unseen(cards)
}

func (m *Memory) partner(cards []service.CardView, id, value string) string {
	for _, c := range cards {
		if c.ID != id && hidden(c) && m.seen[c.ID] == value {
			return c.ID
		}
	}
	return ""
}

// knownPair returns the first card of a pair whose both symbols are known.
func (m *Memory) knownPair(cards []service.CardView) string {
	for _, c := range cards {
		v, ok := m.seen[c.ID]
		if !ok || !hidden(c) {
			continue
		}
		if m.partner(cards, c.ID, v) != "" {
			return c.ID
		}
	}
	return ""
}

func (m *Memory) unseen(cards []service.CardView) (string, bool) {
	var fallback string
	for _, c := range cards {
		if !hidden(c) {
			continue
		}
		if _, ok := m.seen[c.ID]; !ok {
			return c.ID, true
		}
		if fallback == "" {
			fallback = c.ID
		}
	}
	return fallback, fallback != ""
}
