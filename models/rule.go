package models

import "time"

// RuleTrigger is the closed set of events a rule can react to.
type RuleTrigger string

const (
	TriggerNewRelease           RuleTrigger = "new_release"
	TriggerLibrarySync          RuleTrigger = "library_sync"
	TriggerRecommendation       RuleTrigger = "recommendation_generated"
	TriggerListeningMilestone   RuleTrigger = "listening_milestone"
	TriggerNewArtistDiscovered  RuleTrigger = "new_artist_discovered"
	TriggerSchedule             RuleTrigger = "schedule"
	TriggerPlaylistURLCheck     RuleTrigger = "playlist_url_check"
)

func (t RuleTrigger) Valid() bool {
	switch t {
	case TriggerNewRelease, TriggerLibrarySync, TriggerRecommendation,
		TriggerListeningMilestone, TriggerNewArtistDiscovered,
		TriggerSchedule, TriggerPlaylistURLCheck:
		return true
	}
	return false
}

// RuleOperator is the closed set of condition operators.
type RuleOperator string

const (
	OpEquals       RuleOperator = "equals"
	OpNotEquals    RuleOperator = "not_equals"
	OpContains     RuleOperator = "contains"
	OpNotContains  RuleOperator = "not_contains"
	OpGreaterThan  RuleOperator = "greater_than"
	OpLessThan     RuleOperator = "less_than"
	OpInList       RuleOperator = "in_list"
	OpNotInList    RuleOperator = "not_in_list"
	OpMatchesRegex RuleOperator = "matches_regex"
)

func (o RuleOperator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpGreaterThan,
		OpLessThan, OpInList, OpNotInList, OpMatchesRegex:
		return true
	}
	return false
}

// Negated reports whether a missing field satisfies the operator.
func (o RuleOperator) Negated() bool {
	switch o {
	case OpNotEquals, OpNotContains, OpNotInList:
		return true
	}
	return false
}

// RuleActionType is the closed set of rule side-effects.
type RuleActionType string

const (
	ActionAddToWishlist     RuleActionType = "add_to_wishlist"
	ActionStartDownload     RuleActionType = "start_download"
	ActionAddToPlaylist     RuleActionType = "add_to_playlist"
	ActionSendNotification  RuleActionType = "send_notification"
	ActionTagItem           RuleActionType = "tag_item"
	ActionSetQualityProfile RuleActionType = "set_quality_profile"
	ActionSkipItem          RuleActionType = "skip_item"
	ActionAddToLibrary      RuleActionType = "add_to_library"
	ActionImportPlaylistURL RuleActionType = "import_playlist_url"
)

func (a RuleActionType) Valid() bool {
	switch a {
	case ActionAddToWishlist, ActionStartDownload, ActionAddToPlaylist,
		ActionSendNotification, ActionTagItem, ActionSetQualityProfile,
		ActionSkipItem, ActionAddToLibrary, ActionImportPlaylistURL:
		return true
	}
	return false
}

// RuleCondition is one AND-joined predicate term.
type RuleCondition struct {
	Field    string       `json:"field"`
	Operator RuleOperator `json:"operator"`
	Value    any          `json:"value"`
}

// RuleAction is one side-effect with typed parameters.
type RuleAction struct {
	Type   RuleActionType `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// AutomationRule ties a trigger to conditions and actions.
type AutomationRule struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"userId"`
	Name       string          `json:"name"`
	Trigger    RuleTrigger     `json:"trigger"`
	Conditions []RuleCondition `json:"conditions"`
	Actions    []RuleAction    `json:"actions"`
	Priority   int             `json:"priority"`
	Enabled    bool            `json:"enabled"`

	LastTriggeredAt *time.Time `json:"lastTriggeredAt,omitempty"`
	TriggerCount    int        `json:"triggerCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
