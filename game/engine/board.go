package engine

import (
	"fmt"
	"math/rand/v2"
)

// Shuffle permutes s uniformly in place (Fisher–Yates).
func Shuffle[T any](rng *rand.Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// SampleSymbols picks n distinct symbols from alphabet without replacement.
// The alphabet slice is not modified.
func SampleSymbols(rng *rand.Rand, alphabet []string, n int) ([]string, error) {
	if n < 0 || n > len(alphabet) {
		return nil, fmt.Errorf("cannot pick %d symbols from an alphabet of %d", n, len(alphabet))
	}
	src := append([]string(nil), alphabet...)
	Shuffle(rng, src)
	return src[:n], nil
}

// DealCards builds a shuffled board with two face-down cards per chosen
// symbol. Ids are assigned by board position after the shuffle ("c0",
// "c1", ...), so an id says nothing about which card it pairs with.
func DealCards(rng *rand.Rand, alphabet []string, pairs int) ([]Card, error) {
	chosen, err := SampleSymbols(rng, alphabet, pairs)
	if err != nil {
		return nil, err
	}

	cards := make([]Card, 0, pairs*2)
	for _, value := range chosen {
		cards = append(cards, Card{Value: value}, Card{Value: value})
	}
	Shuffle(rng, cards)
	for i := range cards {
		cards[i].ID = CardID(i)
	}
	return cards, nil
}

// CardID returns the id of the card at board position i.
func CardID(i int) string {
	return fmt.Sprintf("c%d", i)
}
