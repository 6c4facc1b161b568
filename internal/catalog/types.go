package catalog

import "errors"

var (
	// ErrNotFound is returned when the catalog has no such pokemon or type.
	ErrNotFound = errors.New("not found in catalog")
	// ErrUpstream is returned when the catalog cannot be reached or answers with an error.
	ErrUpstream = errors.New("catalog unavailable")
	// ErrInvalidArgument is returned for out-of-range paging or empty names.
	ErrInvalidArgument = errors.New("invalid catalog request")
)

// Paging limits for ListPokemon.
const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MinSearchLength is the shortest query Search matches against.
	MinSearchLength = 2
)

// Summary is the list view of a pokemon.
type Summary struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Image string   `json:"image"`
	Types []string `json:"types"`
}

// Stat is one base stat of a pokemon.
type Stat struct {
	Name string `json:"name"`
	Base int    `json:"base"`
}

// Detail is the full view of a pokemon.
type Detail struct {
	Summary
	Height    int      `json:"height"`
	Weight    int      `json:"weight"`
	Abilities []string `json:"abilities"`
	Stats     []Stat   `json:"stats"`
}

// StatValue returns the base value of the named stat and whether it is present.
func (d *Detail) StatValue(name string) (int, bool) {
	for _, s := range d.Stats {
		if s.Name == name {
			return s.Base, true
		}
	}
	return 0, false
}

// Page is one page of ListPokemon results.
type Page struct {
	Count   int       `json:"count"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	Results []Summary `json:"results"`
}

// TypeRelations are the damage relations of one type.
type TypeRelations struct {
	Name             string   `json:"name"`
	DoubleDamageTo   []string `json:"doubleDamageTo"`
	DoubleDamageFrom []string `json:"doubleDamageFrom"`
	HalfDamageTo     []string `json:"halfDamageTo"`
	HalfDamageFrom   []string `json:"halfDamageFrom"`
	NoDamageTo       []string `json:"noDamageTo"`
	NoDamageFrom     []string `json:"noDamageFrom"`
}

// Effectiveness summarises how one attacking type fares against a defender's types.
type Effectiveness string

const (
	Neutral      Effectiveness = "neutral"
	Advantage    Effectiveness = "advantage"
	Disadvantage Effectiveness = "disadvantage"
	Mixed        Effectiveness = "mixed"
	// NoEffect means the attacking type cannot damage the defender.
	NoEffect Effectiveness = "no_effect"
	// Immune means the defender cannot damage the attacking type.
	Immune Effectiveness = "immune"
)

// TypeMatchup is the effectiveness of one of a pokemon's types against its opponent.
type TypeMatchup struct {
	Type   string        `json:"type"`
	Result Effectiveness `json:"result"`
}

// StatComparison holds one stat of both pokemon. Diff is first minus second.
type StatComparison struct {
	Name   string `json:"name"`
	First  int    `json:"first"`
	Second int    `json:"second"`
	Diff   int    `json:"diff"`
}

// Comparison is the result of Compare.
type Comparison struct {
	First          *Detail          `json:"first"`
	Second         *Detail          `json:"second"`
	Stats          []StatComparison `json:"stats"`
	FirstMatchups  []TypeMatchup    `json:"firstMatchups"`
	SecondMatchups []TypeMatchup    `json:"secondMatchups"`
}
