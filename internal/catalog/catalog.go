// Package catalog holds the static game catalog shown on the VIP pages
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrUnknownProvider is returned for a provider that is not in the catalog
var ErrUnknownProvider = errors.New("unknown provider")

// Game is one featured slot game
type Game struct {
	Name       string `yaml:"name" json:"name"`
	Image      string `yaml:"image" json:"image"`
	Multiplier string `yaml:"multiplier" json:"multiplier"`
}

// Provider is a game provider such as PG Soft
type Provider struct {
	Logo  string `yaml:"logo" json:"logo"`
	Games []Game `yaml:"games" json:"games"`
}

// Catalog is the read-only catalog document
type Catalog struct {
	Providers   map[string]Provider `yaml:"providers" json:"providers"`
	BonusImages map[int][]string    `yaml:"bonus_images" json:"bonusImages"`
	Sites       map[int]string      `yaml:"sites" json:"sites"`
}

// Default returns the catalog compiled into the binary
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a catalog document
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if len(c.Providers) == 0 {
		return nil, errors.New("catalog has no providers")
	}

	return &c, nil
}

// ProviderIDs returns the provider IDs in sorted order
func (c *Catalog) ProviderIDs() []string {
	ids := make([]string, 0, len(c.Providers))
	for id := range c.Providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Games returns the featured games of one provider
func (c *Catalog) Games(provider string) ([]Game, error) {
	p, ok := c.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return slices.Clone(p.Games), nil
}

// ProviderLogo returns the logo URL of one provider
func (c *Catalog) ProviderLogo(provider string) (string, error) {
	p, ok := c.Providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return p.Logo, nil
}

// SiteName returns the name of site n, or false if there is none
func (c *Catalog) SiteName(n int) (string, bool) {
	name, ok := c.Sites[n]
	return name, ok
}

// Bonus returns the bonus images for site n
func (c *Catalog) Bonus(n int) []string {
	return slices.Clone(c.BonusImages[n])
}
