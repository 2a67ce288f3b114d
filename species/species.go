// Package species looks up Pokemon species attributes in PokeAPI behind a
// read-through cache.
package species

import (
	"encoding/json"
	"errors"
	"strings"
)

// DescriptionUnavailable replaces the description when no English entry exists.
const DescriptionUnavailable = "Description unavailable."

// Species holds the attributes of one species. Values are never mutated
// after construction.
type Species struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Habitat is empty when PokeAPI reports none.
	Habitat     string `json:"habitat,omitempty"`
	IsLegendary bool   `json:"is_legendary"`
}

// HasHabitat reports whether a habitat is known.
func (s Species) HasHabitat() bool {
	return s.Habitat != ""
}

var errMissingLegendary = errors.New("species: response lacks is_legendary")

// speciesPayload mirrors the subset of /pokemon-species read here.
type speciesPayload struct {
	Name        string `json:"name"`
	IsLegendary *bool  `json:"is_legendary"`
	Habitat     *struct {
		Name string `json:"name"`
	} `json:"habitat"`
	FlavorTextEntries []struct {
		FlavorText string `json:"flavor_text"`
		Language   struct {
			Name string `json:"name"`
		} `json:"language"`
	} `json:"flavor_text_entries"`
}

// parse decodes a /pokemon-species body. fallbackName is used when the
// payload carries no name.
func parse(body []byte, fallbackName string) (Species, error) {
	var p speciesPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Species{}, err
	}
	if p.IsLegendary == nil {
		return Species{}, errMissingLegendary
	}

	s := Species{
		Name:        strings.ToLower(p.Name),
		Description: DescriptionUnavailable,
		IsLegendary: *p.IsLegendary,
	}
	if s.Name == "" {
		s.Name = fallbackName
	}
	if p.Habitat != nil {
		s.Habitat = p.Habitat.Name
	}
	for _, entry := range p.FlavorTextEntries {
		if entry.Language.Name == "en" {
			s.Description = cleanFlavorText(entry.FlavorText)
			break
		}
	}
	return s, nil
}

var flavorTextReplacer = strings.NewReplacer("\n", " ", "\f", " ")

func cleanFlavorText(s string) string {
	return flavorTextReplacer.Replace(s)
}

// Normalize returns the cache and lookup key for a requested name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
