// Package inspector tracks which node of a graph is open for content editing.
//
// The inspector is a small state machine:
//
//	Closed --Open(node)--> Selected --OpenTab(tab)--> Editing
//	   ^                      |                          |
//	   +-------Close()--------+----------Close()---------+
//
// Opening a node while another one is open closes the first one. At most one
// node is open at a time.
package inspector

import (
	"fmt"
	"slices"
	"sync"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// State is the inspector's position in the selection state machine.
type State string

const (
	StateClosed   State = "closed"
	StateSelected State = "selected"
	StateEditing  State = "editing"
)

// Tab is a content editing surface of the inspector.
type Tab string

const (
	TabContent Tab = "content"
	TabMedia   Tab = "media"
	TabActions Tab = "actions"
)

// Tabs lists the known tabs in display order.
var Tabs = []Tab{TabContent, TabMedia, TabActions}

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	return slices.Contains(Tabs, t)
}

// SaveFunc writes an edited payload back into the graph. It must call
// current while holding the graph lock and abort with its error, so a
// binding closed concurrently never commits.
type SaveFunc func(nodeID string, payload domain.Payload, current func() error) error

// Binding is what a content editing surface receives for the open node.
// OnChange keeps a draft with fresh action flags; OnSave commits a payload.
// OnSave only accepts the bound node id and fails with
// domain.ErrBindingClosed once the node was closed or another node opened.
type Binding struct {
	Node     domain.FlowNode
	OnChange func(payload domain.Payload) domain.Payload
	OnSave   func(nodeID string, payload domain.Payload) error
}

// Inspector is safe for concurrent use.
type Inspector struct {
	mu    sync.Mutex
	state State
	node  domain.FlowNode
	tab   Tab
	draft *domain.Payload
	save  SaveFunc
	gen   uint64 // bumped on every open and close
}

// New creates a closed inspector that commits payloads through save.
func New(save SaveFunc) *Inspector {
	return &Inspector{state: StateClosed, save: save}
}

// State returns the current state.
func (i *Inspector) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Current returns the open node id and tab. The id is empty when closed.
func (i *Inspector) Current() (string, Tab) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateClosed {
		return "", ""
	}
	return i.node.ID, i.tab
}

// Open selects node, closing any other open node first, and returns the
// binding for it.
func (i *Inspector) Open(node domain.FlowNode) *Binding {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.closeLocked()
	i.state = StateSelected
	i.node = node.Clone()
	return i.bindingLocked()
}

// OpenTab moves a selected node into editing on the given tab.
func (i *Inspector) OpenTab(tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("unknown tab %q", tab)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateClosed {
		return fmt.Errorf("open tab %s: no node selected", tab)
	}
	i.state = StateEditing
	i.tab = tab
	return nil
}

// Close closes the inspector. Unsaved drafts are discarded.
func (i *Inspector) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closeLocked()
}

// CloseIf closes the inspector only when nodeID is the open node.
func (i *Inspector) CloseIf(nodeID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateClosed || i.node.ID != nodeID {
		return false
	}
	i.closeLocked()
	return true
}

func (i *Inspector) closeLocked() {
	i.gen++
	i.state = StateClosed
	i.node = domain.FlowNode{}
	i.tab = ""
	i.draft = nil
}

// Draft returns the pending, unsaved payload of the open node.
func (i *Inspector) Draft() (domain.Payload, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.draft == nil {
		return domain.Payload{}, false
	}
	return i.draft.Clone(), true
}

func (i *Inspector) bindingLocked() *Binding {
	i.gen++
	gen := i.gen
	nodeID := i.node.ID
	current := func() error {
		i.mu.Lock()
		defer i.mu.Unlock()
		if i.gen != gen || i.state == StateClosed {
			return fmt.Errorf("save %q: %w", nodeID, domain.ErrBindingClosed)
		}
		return nil
	}
	return &Binding{
		Node: i.node.Clone(),
		OnChange: func(payload domain.Payload) domain.Payload {
			p := payload.Clone()
			p.Refresh()
			i.mu.Lock()
			defer i.mu.Unlock()
			if i.gen == gen && i.state != StateClosed {
				d := p.Clone()
				i.draft = &d
			}
			return p
		},
		OnSave: func(id string, payload domain.Payload) error {
			if id != nodeID {
				return fmt.Errorf("save %q through the binding of %q: %w", id, nodeID, domain.ErrBindingClosed)
			}
			if err := current(); err != nil {
				return err
			}
			if err := i.save(nodeID, payload, current); err != nil {
				return err
			}
			i.mu.Lock()
			defer i.mu.Unlock()
			if i.gen == gen && i.state != StateClosed {
				i.draft = nil
				i.node.Payload = payload.Clone()
				i.node.Payload.Refresh()
			}
			return nil
		},
	}
}
