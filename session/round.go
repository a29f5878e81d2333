/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/Seednode/tandem/vocab"
)

// Provider supplies the entries cards are drawn from.
type Provider interface {
	Random() vocab.Entry
}

// CardSide is the face of an entry shown to a participant.
type CardSide int

const (
	SideWord CardSide = iota
	SideDefinition
)

func (s CardSide) MarshalText() ([]byte, error) {
	switch s {
	case SideWord:
		return []byte("word"), nil
	case SideDefinition:
		return []byte("definition"), nil
	default:
		return nil, fmt.Errorf("invalid card side %d", int(s))
	}
}

func (s *CardSide) UnmarshalText(b []byte) error {
	switch string(b) {
	case "word":
		*s = SideWord
	case "definition":
		*s = SideDefinition
	default:
		return fmt.Errorf("invalid card side %q", b)
	}

	return nil
}

// Definitions always encodes as a list, but decodes from either a single
// string or a list.
type Definitions []string

func (d Definitions) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}

	return json.Marshal([]string(d))
}

func (d *Definitions) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*d = Definitions{one}
		return nil
	}

	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("definition must be a string or a list of strings: %w", err)
	}
	*d = many

	return nil
}

// Card is an entry plus the face shown. Cards are values; clients receive copies.
type Card struct {
	Word       string      `json:"word"`
	WordDetail string      `json:"wordDetail"`
	Definition Definitions `json:"definition"`
	Side       CardSide    `json:"side"`
}

func randomCard(p Provider) Card {
	e := p.Random()

	side := SideWord
	if rand.Intn(2) == 1 {
		side = SideDefinition
	}

	return Card{
		Word:       e.Word,
		WordDetail: e.WordDetail,
		Definition: Definitions(e.Definitions),
		Side:       side,
	}
}

// Round is the authoritative state of one round, indexed by Role.
// scores[r] holds the score r has been given by its peer.
type Round struct {
	cards  [2]Card
	scores [2]*uint8
	ready  [2]bool
}

// NewRound draws an independent card for each role. The same entry may land
// on both cards.
func NewRound(p Provider) Round {
	var r Round
	for _, role := range Roles {
		r.cards[role] = randomCard(p)
	}

	return r
}

// Card returns the card assigned to role.
func (r *Round) Card(role Role) Card {
	return r.cards[role]
}

// Ready reports whether role has asked to advance.
func (r *Round) Ready(role Role) bool {
	return r.ready[role]
}

// State is the view of a round pushed to one participant.
type State struct {
	// MyCard is the peer's card, which this participant reviews.
	MyCard    Card `json:"myCard"`
	TheirCard Card `json:"theirCard"`

	// HasScore reports whether the peer has scored this participant.
	HasScore bool `json:"hasScore"`

	// Scored is the score this participant gave the peer.
	Scored *uint8 `json:"scored"`

	Ready bool `json:"ready"`
}

// Project returns the view of r for role.
func (r *Round) Project(role Role) State {
	st := State{
		MyCard:    r.cards[role.Other()],
		TheirCard: r.cards[role],
		HasScore:  r.scores[role] != nil,
		Ready:     r.ready[role],
	}

	if given := r.scores[role.Other()]; given != nil {
		v := *given
		st.Scored = &v
	}

	return st
}
