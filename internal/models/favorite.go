package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FavoriteEntry is one Pokémon marked as favorite, keyed by its Pokédex number.
type FavoriteEntry struct {
	PokemonID   int    `json:"pokemonId" bson:"pokemonId"`
	PokemonName string `json:"pokemonName" bson:"pokemonName"`
	Image       string `json:"image,omitempty" bson:"image,omitempty"`
}

// Favorites is the ordered favorites list of an account. Order is insertion order.
type Favorites []FavoriteEntry

// MarshalJSON renders an empty list as [] instead of null.
func (f Favorites) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]FavoriteEntry(f))
}

// Contains reports whether pokemonID is already in the list.
func (f Favorites) Contains(pokemonID int) bool {
	for _, fav := range f {
		if fav.PokemonID == pokemonID {
			return true
		}
	}
	return false
}

// With returns a new list with entry appended. ok is false when the id is already present,
// in which case the original list is returned untouched.
func (f Favorites) With(entry FavoriteEntry) (Favorites, bool) {
	if f.Contains(entry.PokemonID) {
		return f, false
	}
	next := make(Favorites, 0, len(f)+1)
	next = append(next, f...)
	return append(next, entry), true
}

// Without returns a new list with pokemonID filtered out. ok is false when nothing was removed.
func (f Favorites) Without(pokemonID int) (Favorites, bool) {
	next := make(Favorites, 0, len(f))
	for _, fav := range f {
		if fav.PokemonID != pokemonID {
			next = append(next, fav)
		}
	}
	if len(next) == len(f) {
		return f, false
	}
	return next, true
}

// IDs returns the pokemon ids in list order.
func (f Favorites) IDs() []int {
	ids := make([]int, 0, len(f))
	for _, fav := range f {
		ids = append(ids, fav.PokemonID)
	}
	return ids
}

// Clone copies the list. A nil list clones to an empty, non-nil list.
func (f Favorites) Clone() Favorites {
	c := make(Favorites, len(f))
	copy(c, f)
	return c
}

// PokemonID is a Pokédex number as sent by clients. Both 25 and "25" decode to 25.
type PokemonID int

// UnmarshalJSON accepts a JSON number or a numeric string. Whole numbers written with a fraction or
// exponent, like 25.0 or 2.5e1, are the same id.
func (p *PokemonID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*p = 0
		return nil
	}
	raw = strings.TrimSpace(strings.Trim(raw, `"`))
	if n, err := strconv.Atoi(raw); err == nil {
		*p = PokemonID(n)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("pokemonId must be an integer, got %s", string(data))
	}
	*p = PokemonID(int(f))
	return nil
}

// Int returns the id as a plain int.
func (p PokemonID) Int() int {
	return int(p)
}
