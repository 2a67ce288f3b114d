// Package service answers the two pokedex queries: a species' basic
// information, and the same information with its description translated in
// the style the species calls for.
package service

import (
	"context"
	"errors"

	"github.com/jonwraymond/pokedex/species"
	"github.com/jonwraymond/pokedex/translate"
)

// CaveHabitat selects the Yoda style for non-legendary species.
const CaveHabitat = "cave"

// SpeciesFetcher looks up a species by name.
type SpeciesFetcher interface {
	Fetch(ctx context.Context, name string) (species.Species, error)
}

// Translator rewrites text in a style.
type Translator interface {
	Translate(ctx context.Context, text string, style translate.Style) (string, error)
}

var (
	// ErrNilFetcher indicates New was called without a SpeciesFetcher.
	ErrNilFetcher = errors.New("service: species fetcher is nil")

	// ErrNilTranslator indicates New was called without a Translator.
	ErrNilTranslator = errors.New("service: translator is nil")
)

// Info is the public view of a species.
type Info struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Habitat     *string `json:"habitat"`
	IsLegendary bool    `json:"is_legendary"`
}

// HabitatName returns the habitat, or "" when unknown.
func (i Info) HabitatName() string {
	if i.Habitat == nil {
		return ""
	}
	return *i.Habitat
}

// FromSpecies maps a species to its public view.
func FromSpecies(s species.Species) Info {
	info := Info{
		Name:        s.Name,
		Description: s.Description,
		IsLegendary: s.IsLegendary,
	}
	if s.HasHabitat() {
		h := s.Habitat
		info.Habitat = &h
	}
	return info
}

// SelectStyle picks Yoda for legendary or cave-dwelling species and
// Shakespeare for everything else.
func SelectStyle(s species.Species) translate.Style {
	if s.IsLegendary || s.Habitat == CaveHabitat {
		return translate.Yoda
	}
	return translate.Shakespeare
}

// Service fetches species and, for translated queries, rewrites the
// description in the selected style.
// Errors from either dependency are returned unchanged.
type Service struct {
	species    SpeciesFetcher
	translator Translator
}

// New creates a Service.
func New(fetcher SpeciesFetcher, translator Translator) (*Service, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	if translator == nil {
		return nil, ErrNilTranslator
	}
	return &Service{species: fetcher, translator: translator}, nil
}

// BasicInfo returns the species called name as fetched.
func (s *Service) BasicInfo(ctx context.Context, name string) (Info, error) {
	sp, err := s.species.Fetch(ctx, name)
	if err != nil {
		return Info{}, err
	}
	return FromSpecies(sp), nil
}

// TranslatedInfo returns the species called name with its description
// translated. There is no partial result: any failure aborts the query.
func (s *Service) TranslatedInfo(ctx context.Context, name string) (Info, error) {
	sp, err := s.species.Fetch(ctx, name)
	if err != nil {
		return Info{}, err
	}

	text, err := s.translator.Translate(ctx, sp.Description, SelectStyle(sp))
	if err != nil {
		return Info{}, err
	}

	info := FromSpecies(sp)
	info.Description = text
	return info, nil
}
