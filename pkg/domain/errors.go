package domain

import "errors"

// ErrNodeNotFound is returned when an operation references a node id that does
// not exist. The operation is a no-op.
var ErrNodeNotFound = errors.New("node not found")

// ErrTreeShape is returned when a structural edit would give a node a second
// parent or close a cycle.
var ErrTreeShape = errors.New("would violate tree shape")

// ErrSelfLoop is returned when a node is asked to loop to itself.
var ErrSelfLoop = errors.New("node cannot loop to itself")

// ErrLoopNotArmed is returned when a loop target is picked without arming a source first.
var ErrLoopNotArmed = errors.New("loop marking is not armed")

// ErrNothingToUndo is returned when the snapshot history is empty.
var ErrNothingToUndo = errors.New("nothing to undo")

// ErrBotNotFound is returned when a bot id cannot be found in the repository.
var ErrBotNotFound = errors.New("bot not found")

// ErrSessionClosed is returned by operations on a closed editing session.
var ErrSessionClosed = errors.New("session closed")

// ErrBindingClosed is returned when a content binding commits after its node
// was closed in the inspector.
var ErrBindingClosed = errors.New("inspector binding closed")
