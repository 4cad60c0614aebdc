package model

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ReactionKind is the animal icon category attached to a tweet.
type ReactionKind string

const (
	ReactionPaw    ReactionKind = "paw"
	ReactionCat    ReactionKind = "cat"
	ReactionDog    ReactionKind = "dog"
	ReactionFrog   ReactionKind = "frog"
	ReactionDragon ReactionKind = "dragon"
	ReactionKiwi   ReactionKind = "kiwi-bird"
	ReactionHorse  ReactionKind = "horse"
	ReactionFish   ReactionKind = "fish"
)

// ReactionKinds lists every kind in display order.
var ReactionKinds = []ReactionKind{
	ReactionPaw, ReactionCat, ReactionDog, ReactionFrog,
	ReactionDragon, ReactionKiwi, ReactionHorse, ReactionFish,
}

var reactionNames = map[ReactionKind]string{
	ReactionPaw:    "肉球",
	ReactionCat:    "猫",
	ReactionDog:    "犬",
	ReactionFrog:   "カエル",
	ReactionDragon: "ドラゴン",
	ReactionKiwi:   "キウイ",
	ReactionHorse:  "馬",
	ReactionFish:   "魚",
}

// Valid reports whether k is one of the known kinds.
func (k ReactionKind) Valid() bool {
	_, ok := reactionNames[k]
	return ok
}

// DisplayName returns the Japanese label, or "" for unknown kinds.
func (k ReactionKind) DisplayName() string { return reactionNames[k] }

// ReactionWeights maps each kind to its relative draw weight.
type ReactionWeights map[ReactionKind]float64

// DefaultReactionWeights sums to 100.
func DefaultReactionWeights() ReactionWeights {
	return ReactionWeights{
		ReactionPaw:    20,
		ReactionCat:    20,
		ReactionDog:    20,
		ReactionFrog:   10,
		ReactionDragon: 5,
		ReactionKiwi:   10,
		ReactionHorse:  10,
		ReactionFish:   5,
	}
}

// Validate checks the table: known kinds, no negative weight, at least one positive.
func (w ReactionWeights) Validate() error {
	if len(w) == 0 {
		return errors.New("reaction weights: empty table")
	}
	total := 0.0
	for k, v := range w {
		if !k.Valid() {
			return fmt.Errorf("reaction weights: unknown kind %q", k)
		}
		if v < 0 {
			return fmt.Errorf("reaction weights: negative weight for %q", k)
		}
		total += v
	}
	if total <= 0 {
		return errors.New("reaction weights: no positive weight")
	}
	return nil
}

// Pick draws a kind proportionally to its weight. Iteration follows
// ReactionKinds so the draw is reproducible for a seeded source.
func (w ReactionWeights) Pick(r *rand.Rand) ReactionKind {
	total := 0.0
	for _, k := range ReactionKinds {
		total += w[k]
	}
	if total <= 0 {
		return ReactionKinds[0]
	}
	x := r.Float64() * total
	for _, k := range ReactionKinds {
		x -= w[k]
		if x < 0 {
			return k
		}
	}
	return ReactionKinds[0]
}
