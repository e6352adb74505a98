package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/mitchellh/mapstructure"
)

// ActionTarget identifies what a post-send action does.
type ActionTarget string

const (
	// TargetForwardBoard forwards the conversation to a board room.
	TargetForwardBoard ActionTarget = "board"
	// TargetPauseBot pauses the bot for the chat during a number of minutes.
	TargetPauseBot ActionTarget = "pause"
	// TargetBlacklist adds the contact to the bot's blacklist.
	TargetBlacklist ActionTarget = "blacklist"
)

// Targets lists the closed set of known action targets.
var Targets = []ActionTarget{TargetForwardBoard, TargetPauseBot, TargetBlacklist}

// Known reports whether t is part of the closed target set.
func (t ActionTarget) Known() bool {
	return slices.Contains(Targets, t)
}

// ActionSettings is the typed settings record of one action target.
// Each target has its own implementation; Missing lists the required
// settings that are not filled in yet.
type ActionSettings interface {
	Target() ActionTarget
	Missing() []string
}

// ForwardSettings configures TargetForwardBoard.
type ForwardSettings struct {
	BoardID string `json:"board_id" mapstructure:"board_id"`
	RoomID  string `json:"room_id" mapstructure:"room_id"`
}

func (s *ForwardSettings) Target() ActionTarget { return TargetForwardBoard }

func (s *ForwardSettings) Missing() []string {
	var missing []string
	if s.BoardID == "" {
		missing = append(missing, "board_id")
	}
	if s.RoomID == "" {
		missing = append(missing, "room_id")
	}
	return missing
}

// PauseSettings configures TargetPauseBot.
type PauseSettings struct {
	Minutes int `json:"minutes" mapstructure:"minutes"`
}

func (s *PauseSettings) Target() ActionTarget { return TargetPauseBot }

func (s *PauseSettings) Missing() []string {
	if s.Minutes <= 0 {
		return []string{"minutes"}
	}
	return nil
}

// BlacklistSettings configures TargetBlacklist. It has no required settings.
type BlacklistSettings struct {
	Reason string `json:"reason,omitempty" mapstructure:"reason"`
}

func (s *BlacklistSettings) Target() ActionTarget { return TargetBlacklist }

func (s *BlacklistSettings) Missing() []string { return nil }

// RawSettings keeps the settings of a target this editor does not know.
// Such actions are always reported as misconfigured.
type RawSettings struct {
	Kind   ActionTarget
	Values map[string]any
}

func (s *RawSettings) Target() ActionTarget { return s.Kind }

func (s *RawSettings) Missing() []string { return []string{"target"} }

// NewSettings returns empty settings for the given target.
func NewSettings(target ActionTarget) ActionSettings {
	switch target {
	case TargetForwardBoard:
		return &ForwardSettings{}
	case TargetPauseBot:
		return &PauseSettings{}
	case TargetBlacklist:
		return &BlacklistSettings{}
	default:
		return &RawSettings{Kind: target, Values: map[string]any{}}
	}
}

// DecodeSettings builds typed settings for target from an open map.
// Input is weakly typed ("5" and 5.0 both decode into an int); keys the typed
// record does not declare are returned as leftovers.
func DecodeSettings(target ActionTarget, values map[string]any) (ActionSettings, map[string]any, error) {
	settings := NewSettings(target)
	if raw, ok := settings.(*RawSettings); ok {
		raw.Values = maps.Clone(values)
		if raw.Values == nil {
			raw.Values = map[string]any{}
		}
		return raw, nil, nil
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           settings,
		WeaklyTypedInput: true,
		Metadata:         &md,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build settings decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return nil, nil, fmt.Errorf("invalid %s settings: %w", target, err)
	}

	var rest map[string]any
	for _, key := range md.Unused {
		if rest == nil {
			rest = make(map[string]any)
		}
		rest[key] = values[key]
	}
	return settings, rest, nil
}

// Action is a side effect the runtime performs after a message is sent.
// The editor stores actions verbatim and never executes them: settings read
// from the wire are written back byte for byte until Settings is edited, and
// an edit only rewrites the keys whose typed value changed.
type Action struct {
	Target   ActionTarget
	Settings ActionSettings
	// Misconfigured is read-only metadata for the inspector. It is derived
	// from Settings by Refresh.
	Misconfigured bool

	// stored is the settings object as read; decoded is Settings as it was
	// decoded from it.
	stored  json.RawMessage
	decoded ActionSettings
	Extra   Extra
}

// NewAction returns an action with empty settings for target.
func NewAction(target ActionTarget) Action {
	a := Action{Target: target, Settings: NewSettings(target)}
	a.Refresh()
	return a
}

// Refresh recomputes the misconfigured flag from the settings.
func (a *Action) Refresh() {
	if a.Settings == nil || a.Settings.Target() != a.Target {
		a.Misconfigured = true
		return
	}
	a.Misconfigured = len(a.Settings.Missing()) > 0
}

// Clone returns a deep copy of the action.
func (a Action) Clone() Action {
	a.Settings = cloneSettings(a.Settings)
	a.decoded = cloneSettings(a.decoded)
	a.stored = append(json.RawMessage(nil), a.stored...)
	a.Extra = a.Extra.Clone()
	return a
}

func cloneSettings(settings ActionSettings) ActionSettings {
	switch s := settings.(type) {
	case *ForwardSettings:
		c := *s
		return &c
	case *PauseSettings:
		c := *s
		return &c
	case *BlacklistSettings:
		c := *s
		return &c
	case *RawSettings:
		return &RawSettings{Kind: s.Kind, Values: maps.Clone(s.Values)}
	}
	return settings
}

// settingsFields flattens typed settings into their wire keys.
func settingsFields(settings ActionSettings) (map[string]any, error) {
	switch s := settings.(type) {
	case nil:
		return nil, nil
	case *RawSettings:
		return maps.Clone(s.Values), nil
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (a Action) encodeSettings() (json.RawMessage, error) {
	if a.stored != nil && reflect.DeepEqual(a.Settings, a.decoded) {
		return a.stored, nil
	}
	now, err := settingsFields(a.Settings)
	if err != nil {
		return nil, err
	}
	if _, raw := a.Settings.(*RawSettings); raw {
		if now == nil {
			now = map[string]any{}
		}
		return json.Marshal(now)
	}

	out := make(map[string]any)
	var stored map[string]json.RawMessage
	if len(a.stored) > 0 && json.Unmarshal(a.stored, &stored) == nil {
		for k, v := range stored {
			out[k] = v
		}
	}
	then, err := settingsFields(a.decoded)
	if err != nil {
		return nil, err
	}
	for k, v := range now {
		if prev, ok := then[k]; ok && reflect.DeepEqual(prev, v) {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func (a Action) MarshalJSON() ([]byte, error) {
	settings, err := a.encodeSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s settings: %w", a.Target, err)
	}
	return joinObject(a.Extra, map[string]any{
		KeyTarget:        a.Target,
		KeySettings:      settings,
		KeyMisconfigured: a.Misconfigured,
	})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	raw, err := splitObject(data)
	if err != nil {
		return err
	}
	*a = Action{}
	if err := take(raw, KeyTarget, &a.Target); err != nil {
		return err
	}
	stored, hasSettings := raw[KeySettings]
	var values map[string]any
	if err := take(raw, KeySettings, &values); err != nil {
		return err
	}
	// The flag is derived; whatever was stored is recomputed below.
	var flag bool
	if err := take(raw, KeyMisconfigured, &flag); err != nil {
		return err
	}

	settings, _, err := DecodeSettings(a.Target, values)
	if err != nil {
		// Undecodable settings show up as misconfigured.
		settings = &RawSettings{Kind: a.Target, Values: values}
	}
	a.Settings = settings
	a.decoded = cloneSettings(settings)
	if hasSettings {
		a.stored = append(json.RawMessage(nil), stored...)
	}
	a.Extra = leftover(raw)
	a.Refresh()
	return nil
}
