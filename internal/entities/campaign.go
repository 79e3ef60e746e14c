package entities

// CampaignSetting describes the world the campaign takes place in
type CampaignSetting struct {
	World            string `json:"world"`
	Region           string `json:"region,omitempty"`
	StartingLocation string `json:"starting_location,omitempty"`
}

// ChapterCompletionConditions gate chapter transitions
type ChapterCompletionConditions struct {
	RequiredFlags          []string `json:"required_flags,omitempty"`
	RecommendedFlags       []string `json:"recommended_flags,omitempty"`
	RequiredQuestsComplete []string `json:"required_quests_complete,omitempty"`
}

// Chapter is a major story section containing multiple nodes
type Chapter struct {
	ChapterID     string `json:"chapter_id"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	ChapterNumber int    `json:"chapter_number"`

	Nodes        []string `json:"nodes,omitempty"`
	StartingNode string   `json:"starting_node"`

	CompletionConditions ChapterCompletionConditions `json:"completion_conditions"`

	IntroNarration string `json:"intro_narration,omitempty"`
	OutroNarration string `json:"outro_narration,omitempty"`
}

// Campaign is the top-level campaign definition, immutable after load.
// Loaders are responsible for referential integrity (every chapter's
// starting node present in the node table).
type Campaign struct {
	CampaignID  string `json:"campaign_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author,omitempty"`
	Version     string `json:"version,omitempty"`

	RecommendedLevelMin int    `json:"recommended_level_min,omitempty"`
	RecommendedLevelMax int    `json:"recommended_level_max,omitempty"`
	EstimatedDuration   string `json:"estimated_duration,omitempty"`

	Setting  CampaignSetting `json:"setting"`
	Chapters []*Chapter      `json:"chapters"`
}

// GetID implements core.Entity
func (c *Campaign) GetID() string { return c.CampaignID }

// GetType implements core.Entity
func (c *Campaign) GetType() string { return "campaign" }

// StartingChapter returns the first chapter, or nil for an empty campaign
func (c *Campaign) StartingChapter() *Chapter {
	if len(c.Chapters) == 0 {
		return nil
	}
	return c.Chapters[0]
}

// GetChapter looks a chapter up by id
func (c *Campaign) GetChapter(chapterID string) *Chapter {
	for _, ch := range c.Chapters {
		if ch.ChapterID == chapterID {
			return ch
		}
	}
	return nil
}
