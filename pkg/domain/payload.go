package domain

import "slices"

// Media is an attachment sent together with a message.
type Media struct {
	URL      string
	Type     string // e.g. "image", "video", "audio", "document"
	Name     string
	MimeType string

	Extra Extra
}

func (m Media) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		"url":  m.URL,
		"type": m.Type,
	}
	if m.Name != "" {
		known["name"] = m.Name
	}
	if m.MimeType != "" {
		known["mimetype"] = m.MimeType
	}
	return joinObject(m.Extra, known)
}

func (m *Media) UnmarshalJSON(data []byte) error {
	raw, err := splitObject(data)
	if err != nil {
		return err
	}
	*m = Media{}
	for key, dst := range map[string]*string{
		"url":      &m.URL,
		"type":     &m.Type,
		"name":     &m.Name,
		"mimetype": &m.MimeType,
	} {
		if err := take(raw, key, dst); err != nil {
			return err
		}
	}
	m.Extra = leftover(raw)
	return nil
}

// Payload is the content of a node. It is edited through the inspector and
// never changes a node's id, kind or edges.
type Payload struct {
	// Text is the message text, or the expected response for response nodes.
	Text string
	// Media is an optional attachment.
	Media *Media
	// Actions are side effects the runtime performs after the message is sent.
	Actions []Action
	// LoopTargetID is a non-structural back-reference. After this node fires the
	// runtime resumes the conversation at the referenced node.
	LoopTargetID string

	Extra Extra
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	if p.Media != nil {
		m := *p.Media
		m.Extra = m.Extra.Clone()
		p.Media = &m
	}
	if p.Actions != nil {
		actions := make([]Action, len(p.Actions))
		for i, a := range p.Actions {
			actions[i] = a.Clone()
		}
		p.Actions = actions
	}
	p.Extra = p.Extra.Clone()
	return p
}

// HasLoop reports whether the node loops back to another node.
func (p Payload) HasLoop() bool {
	return p.LoopTargetID != ""
}

// Misconfigured reports whether any action lacks required settings.
func (p Payload) Misconfigured() bool {
	return slices.ContainsFunc(p.Actions, func(a Action) bool { return a.Misconfigured })
}

// Refresh recomputes the misconfigured flag of every action.
func (p *Payload) Refresh() {
	for i := range p.Actions {
		p.Actions[i].Refresh()
	}
}

func (p Payload) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		KeyValue: p.Text,
	}
	if p.Media != nil {
		known[KeyMedia] = p.Media
	}
	if len(p.Actions) > 0 {
		known[KeyActions] = p.Actions
	}
	if p.LoopTargetID != "" {
		known[KeyLoopTarget] = p.LoopTargetID
	}
	return joinObject(p.Extra, known)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	raw, err := splitObject(data)
	if err != nil {
		return err
	}
	*p = Payload{}
	if err := take(raw, KeyValue, &p.Text); err != nil {
		return err
	}
	if err := take(raw, KeyMedia, &p.Media); err != nil {
		return err
	}
	if err := take(raw, KeyActions, &p.Actions); err != nil {
		return err
	}
	if err := take(raw, KeyLoopTarget, &p.LoopTargetID); err != nil {
		return err
	}
	p.Extra = leftover(raw)
	return nil
}
