package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Misconfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.ActionSettings
		want     bool
	}{
		{"forward without room", &domain.ForwardSettings{BoardID: "b1"}, true},
		{"forward without board", &domain.ForwardSettings{RoomID: "r1"}, true},
		{"forward complete", &domain.ForwardSettings{BoardID: "b1", RoomID: "r1"}, false},
		{"pause without minutes", &domain.PauseSettings{}, true},
		{"pause complete", &domain.PauseSettings{Minutes: 15}, false},
		{"blacklist", &domain.BlacklistSettings{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := domain.Action{Target: tt.settings.Target(), Settings: tt.settings}
			a.Refresh()
			assert.Equal(t, tt.want, a.Misconfigured)
		})
	}
}

func TestAction_SettingsForOtherTargetIsMisconfigured(t *testing.T) {
	a := domain.Action{Target: domain.TargetPauseBot, Settings: &domain.BlacklistSettings{}}
	a.Refresh()
	assert.True(t, a.Misconfigured)
}

func TestNewAction(t *testing.T) {
	a := domain.NewAction(domain.TargetForwardBoard)
	assert.IsType(t, &domain.ForwardSettings{}, a.Settings)
	assert.True(t, a.Misconfigured)

	b := domain.NewAction(domain.TargetBlacklist)
	assert.False(t, b.Misconfigured)
}

func TestDecodeSettings(t *testing.T) {
	s, rest, err := domain.DecodeSettings(domain.TargetPauseBot, map[string]any{
		"minutes": 12.0,
		"note":    "lunch",
	})
	require.NoError(t, err)
	assert.Equal(t, &domain.PauseSettings{Minutes: 12}, s)
	assert.Equal(t, map[string]any{"note": "lunch"}, rest)

	s, rest, err = domain.DecodeSettings(domain.TargetForwardBoard, nil)
	require.NoError(t, err)
	assert.Equal(t, &domain.ForwardSettings{}, s)
	assert.Nil(t, rest)

	_, _, err = domain.DecodeSettings(domain.TargetPauseBot, map[string]any{"minutes": "soon"})
	assert.Error(t, err)
}

func TestPayload_Misconfigured(t *testing.T) {
	p := domain.Payload{Actions: []domain.Action{
		domain.NewAction(domain.TargetBlacklist),
	}}
	assert.False(t, p.Misconfigured())

	p.Actions = append(p.Actions, domain.NewAction(domain.TargetPauseBot))
	assert.True(t, p.Misconfigured())

	p.Actions[1].Settings.(*domain.PauseSettings).Minutes = 5
	p.Refresh()
	assert.False(t, p.Misconfigured())
}

func TestAction_EditRewritesOnlyChangedSettings(t *testing.T) {
	var a domain.Action
	require.NoError(t, json.Unmarshal([]byte(`{"target":"board","settings":{"room_id":"r1","note":"vip"}}`), &a))
	assert.True(t, a.Misconfigured)

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"target":"board","settings":{"room_id":"r1","note":"vip"},"misconfigured":true}`, string(out))

	a.Settings.(*domain.ForwardSettings).BoardID = "b1"
	a.Refresh()
	out, err = json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"target":"board","settings":{"board_id":"b1","room_id":"r1","note":"vip"},"misconfigured":false}`, string(out))
}

func TestAction_CloneKeepsStoredSettings(t *testing.T) {
	var a domain.Action
	require.NoError(t, json.Unmarshal([]byte(`{"target":"pause","settings":{"minutes":2.9}}`), &a))
	c := a.Clone()
	c.Settings.(*domain.PauseSettings).Minutes = 5

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"settings":{"minutes":2.9}`, "editing the clone leaves the original verbatim")

	out, err = json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"settings":{"minutes":5}`)
}
