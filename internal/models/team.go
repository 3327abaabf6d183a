package models

import (
	"fmt"
	"time"
)

// TeamSize is the fixed number of creature slots in every team.
const TeamSize = 6

// Slot is one creature in a team. Either field may be empty, which marks the
// slot as unused.
type Slot struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// Team is an ordered, owner-tagged set of exactly six slots.
type Team struct {
	ID        int64          `json:"id"`
	OwnerID   int64          `json:"ownerId"`
	Slots     [TeamSize]Slot `json:"slots"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Pairs returns the slots as [name, imageURL] pairs, the shape the team
// builder posts and the profile page renders.
func (t Team) Pairs() [][2]string {
	pairs := make([][2]string, TeamSize)
	for i, s := range t.Slots {
		pairs[i] = [2]string{s.Name, s.ImageURL}
	}
	return pairs
}

// SlotsFromPairs converts posted [name, imageURL] pairs into team slots.
// Exactly TeamSize pairs are required.
func SlotsFromPairs(pairs [][2]string) ([TeamSize]Slot, error) {
	var slots [TeamSize]Slot
	if len(pairs) != TeamSize {
		return slots, fmt.Errorf("a team needs exactly %d slots, got %d", TeamSize, len(pairs))
	}
	for i, p := range pairs {
		slots[i] = Slot{Name: p[0], ImageURL: p[1]}
	}
	return slots, nil
}
