package tibia

import "time"

// BoostedSummary is one observation of the currently boosted pair.
//
// Empty name = that slot was not observable this fetch (API failure or the
// response did not carry it). A summary is produced fresh on every fetch and
// never mutated afterwards.
type BoostedSummary struct {
	Creature   string
	Boss       string
	ObservedAt time.Time // zero when the world response carried no usable timestamp
}

func (s *BoostedSummary) HasCreature() bool { return s != nil && s.Creature != "" }
func (s *BoostedSummary) HasBoss() bool     { return s != nil && s.Boss != "" }

// EntityDetails is the descriptive record the API keeps per creature or boss.
// A nil *EntityDetails means "could not be fetched", which is distinct from a
// fetched record with zero-value fields.
type EntityDetails struct {
	Name        string   `json:"name"`
	Race        string   `json:"race"`
	ImageURL    string   `json:"image_url"`
	Description string   `json:"description"`
	Behaviour   string   `json:"behaviour"`
	Hitpoints   int64    `json:"hitpoints"`
	Experience  int64    `json:"experience_points"`
	LootList    []string `json:"loot_list"`
	Featured    bool     `json:"featured"`
}

// CreatureListEntry is one row of the full creature index.
type CreatureListEntry struct {
	Name     string `json:"name"`
	Race     string `json:"race"`
	ImageURL string `json:"image_url"`
	Featured bool   `json:"featured"`
}

// CreatureIndex is the API's full creature listing. Diagnostics only; the
// notification path never touches it.
type CreatureIndex struct {
	Boosted      CreatureListEntry   `json:"boosted"`
	CreatureList []CreatureListEntry `json:"creature_list"`
}
