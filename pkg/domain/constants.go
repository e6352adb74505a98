package domain

// Wire keys shared by the JSON codec and the mapstructure decoders.
const (
	KeyID       = "id"
	KeyType     = "type"
	KeyPosition = "position"
	KeyData     = "data"
	KeySource   = "source"
	KeyTarget   = "target"
	KeyAnimated = "animated"
	KeyNodes    = "nodes"
	KeyEdges    = "edges"
	KeyViewport = "viewport"

	// Payload keys inside a node's "data" object.
	KeyValue      = "value"
	KeyMedia      = "media"
	KeyActions    = "actions"
	KeyLoopTarget = "loopTargetId"

	// Action keys.
	KeySettings      = "settings"
	KeyMisconfigured = "misconfigured"
)
