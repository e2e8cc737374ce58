package room

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mcdev12/draftroom/go/internal/models"
)

const maxConfigString = 64

var (
	numericString = regexp.MustCompile(`^-?\d+$`)
	validate      = validator.New()
)

// range rules for numeric settings, checked after the string is known to be numeric
var configRanges = map[string]string{
	"pick_time":   "min=5,max=600",
	"max_gambits": "min=0,max=10",
}

type configField struct {
	apply func(c *models.RoomConfig, v any) bool
}

func boolField(set func(c *models.RoomConfig, v bool)) configField {
	return configField{apply: func(c *models.RoomConfig, v any) bool {
		b, ok := v.(bool)
		if ok {
			set(c, b)
		}
		return ok
	}}
}

func numericField(key string, set func(c *models.RoomConfig, v string)) configField {
	return configField{apply: func(c *models.RoomConfig, v any) bool {
		s, ok := v.(string)
		if !ok || !validString(s) || !numericString.MatchString(s) {
			return false
		}
		if tag, ranged := configRanges[key]; ranged {
			n, err := strconv.Atoi(s)
			if err != nil || validate.Var(n, tag) != nil {
				return false
			}
		}
		set(c, s)
		return true
	}}
}

func seedField(set func(c *models.RoomConfig, v *string)) configField {
	return configField{apply: func(c *models.RoomConfig, v any) bool {
		if v == nil {
			set(c, nil)
			return true
		}
		s, ok := v.(string)
		if !ok || !validString(s) || !numericString.MatchString(s) {
			return false
		}
		set(c, &s)
		return true
	}}
}

var configFields = map[string]configField{
	"enforce_timer":        boolField(func(c *models.RoomConfig, v bool) { c.EnforceTimer = v }),
	"spectators_get_world": boolField(func(c *models.RoomConfig, v bool) { c.SpectatorsGetWorld = v }),
	"enable_gambits":       boolField(func(c *models.RoomConfig, v bool) { c.EnableGambits = v }),
	"live_game":            boolField(func(c *models.RoomConfig, v bool) { c.LiveGame = v }),
	"admin_starts_game":    boolField(func(c *models.RoomConfig, v bool) { c.AdminStartsGame = v }),
	"open_qualifier_submission": boolField(func(c *models.RoomConfig, v bool) {
		c.OpenQualifierSubmission = v
	}),
	"pick_time":      numericField("pick_time", func(c *models.RoomConfig, v string) { c.PickTime = v }),
	"max_gambits":    numericField("max_gambits", func(c *models.RoomConfig, v string) { c.MaxGambits = v }),
	"overworld_seed": seedField(func(c *models.RoomConfig, v *string) { c.OverworldSeed = v }),
	"nether_seed":    seedField(func(c *models.RoomConfig, v *string) { c.NetherSeed = v }),
	"end_seed":       seedField(func(c *models.RoomConfig, v *string) { c.EndSeed = v }),
	"restrict_players": {apply: func(c *models.RoomConfig, v any) bool {
		list, ok := v.([]any)
		if !ok {
			return false
		}
		players := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok || !validString(s) {
				return false
			}
			players = append(players, s)
		}
		c.RestrictPlayers = players
		return true
	}},
}

func validString(s string) bool {
	return len(s) <= maxConfigString && !strings.Contains(s, "\n")
}

// MergeConfig applies every recognised, well-typed field of payload to cfg.
// Unknown or invalid fields are skipped. It returns the merged config and the
// keys whose value actually changed.
func MergeConfig(cfg models.RoomConfig, payload map[string]any) (models.RoomConfig, []string) {
	next := cloneConfig(cfg)
	var changed []string
	for key, v := range payload {
		field, ok := configFields[key]
		if !ok {
			continue
		}
		candidate := cloneConfig(next)
		if !field.apply(&candidate, v) {
			continue
		}
		if !configEqual(next, candidate) {
			changed = append(changed, key)
		}
		next = candidate
	}
	slices.Sort(changed)
	return next, changed
}

func cloneConfig(c models.RoomConfig) models.RoomConfig {
	out := c
	out.RestrictPlayers = append([]string{}, c.RestrictPlayers...)
	out.OverworldSeed = cloneString(c.OverworldSeed)
	out.NetherSeed = cloneString(c.NetherSeed)
	out.EndSeed = cloneString(c.EndSeed)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func configEqual(a, b models.RoomConfig) bool {
	return a.EnforceTimer == b.EnforceTimer &&
		a.PickTime == b.PickTime &&
		a.SpectatorsGetWorld == b.SpectatorsGetWorld &&
		a.EnableGambits == b.EnableGambits &&
		a.MaxGambits == b.MaxGambits &&
		equalPtr(a.OverworldSeed, b.OverworldSeed) &&
		equalPtr(a.NetherSeed, b.NetherSeed) &&
		equalPtr(a.EndSeed, b.EndSeed) &&
		slices.Equal(a.RestrictPlayers, b.RestrictPlayers) &&
		a.LiveGame == b.LiveGame &&
		a.AdminStartsGame == b.AdminStartsGame &&
		a.OpenQualifierSubmission == b.OpenQualifierSubmission
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
