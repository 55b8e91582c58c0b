package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// SettingsVersion is the schema version written into new settings documents
	SettingsVersion = "2.0.0"

	// GameIDPG is the PG Soft provider
	GameIDPG = "pg"

	// GameIDPP is the Pragmatic Play provider
	GameIDPP = "pp"

	settingsVersionField     = "version"
	settingsLastUpdatedField = "lastUpdated"
)

// GameSettings holds the odds tunables for one game provider.
// All values are percentages.
type GameSettings struct {
	// BaseWin is the base win rate
	BaseWin int `json:"baseWin"`

	// BonusChance is the chance of triggering a bonus round
	BonusChance int `json:"bonusChance"`

	// Randomness is the jitter applied to outcomes; not every provider has it
	Randomness *int `json:"randomness,omitempty"`

	// Volatility is the payout variance; not every provider has it
	Volatility *int `json:"volatility,omitempty"`
}

// GameSettingsUpdate is a partial update for GameSettings. Nil fields are left
// untouched by Merge.
type GameSettingsUpdate struct {
	BaseWin     *int
	BonusChance *int
	Randomness  *int
	Volatility  *int
}

// Merge returns a copy of g with every non-nil field of update applied
func (g GameSettings) Merge(update *GameSettingsUpdate) GameSettings {
	merged := g.clone()
	if update == nil {
		return merged
	}

	if update.BaseWin != nil {
		merged.BaseWin = *update.BaseWin
	}
	if update.BonusChance != nil {
		merged.BonusChance = *update.BonusChance
	}
	if update.Randomness != nil {
		merged.Randomness = Int(*update.Randomness)
	}
	if update.Volatility != nil {
		merged.Volatility = Int(*update.Volatility)
	}

	return merged
}

func (g GameSettings) clone() GameSettings {
	out := g
	if g.Randomness != nil {
		out.Randomness = Int(*g.Randomness)
	}
	if g.Volatility != nil {
		out.Volatility = Int(*g.Volatility)
	}
	return out
}

// Settings is the single shared settings document. On the wire the per-game
// entries sit at the top level next to version and lastUpdated:
//
//	{"version":"2.0.0","lastUpdated":"...","pg":{...},"pp":{...}}
type Settings struct {
	// Version is the schema version
	Version string

	// LastUpdated is when any game entry was last changed
	LastUpdated time.Time

	// Games maps a game ID to its tunables
	Games map[string]GameSettings

	// Extra holds top-level fields that are not valid game entries. They are
	// written back unchanged.
	Extra map[string]json.RawMessage
}

// DefaultSettings returns the settings used when nothing has been stored yet
func DefaultSettings(now time.Time) *Settings {
	return &Settings{
		Version:     SettingsVersion,
		LastUpdated: now,
		Games: map[string]GameSettings{
			GameIDPG: {
				BaseWin:     65,
				BonusChance: 25,
				Randomness:  Int(15),
			},
			GameIDPP: {
				BaseWin:     60,
				BonusChance: 22,
				Volatility:  Int(25),
			},
		},
	}
}

// IsReservedGameID reports whether id collides with a top-level settings field
func IsReservedGameID(id string) bool {
	return id == settingsVersionField || id == settingsLastUpdatedField
}

// Clone returns a deep copy of the settings
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}

	out := &Settings{
		Version:     s.Version,
		LastUpdated: s.LastUpdated,
		Games:       make(map[string]GameSettings, len(s.Games)),
	}
	for id, game := range s.Games {
		out.Games[id] = game.clone()
	}
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for field, raw := range s.Extra {
			out.Extra[field] = bytes.Clone(raw)
		}
	}
	return out
}

// MarshalJSON flattens the game entries into the top-level object
func (s Settings) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.Extra)+len(s.Games)+2)
	for field, raw := range s.Extra {
		doc[field] = raw
	}
	for id, game := range s.Games {
		if IsReservedGameID(id) {
			return nil, fmt.Errorf("game ID %q is reserved", id)
		}
		doc[id] = game
	}
	doc[settingsVersionField] = s.Version
	doc[settingsLastUpdatedField] = s.LastUpdated

	return json.Marshal(doc)
}

// UnmarshalJSON reads version and lastUpdated and treats every other key as a
// game entry. Fields that do not decode as a game are kept in Extra.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	out := Settings{
		Games: make(map[string]GameSettings, len(doc)),
	}
	for field, raw := range doc {
		switch field {
		case settingsVersionField:
			if err := json.Unmarshal(raw, &out.Version); err != nil {
				return fmt.Errorf("failed to decode settings version: %w", err)
			}
		case settingsLastUpdatedField:
			if err := json.Unmarshal(raw, &out.LastUpdated); err != nil {
				return fmt.Errorf("failed to decode settings lastUpdated: %w", err)
			}
		default:
			var game GameSettings
			if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) || json.Unmarshal(raw, &game) != nil {
				if out.Extra == nil {
					out.Extra = make(map[string]json.RawMessage)
				}
				out.Extra[field] = raw
				continue
			}
			out.Games[field] = game
		}
	}

	*s = out
	return nil
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}
