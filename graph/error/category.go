package grapherror

// Category represents the main error category for graph feed operations
type Category string

const (
	// CategoryParse indicates request parsing errors (identities, times)
	CategoryParse Category = "parse"

	// CategoryConvert indicates time conversion errors
	CategoryConvert Category = "convert"

	// CategoryWebSocket indicates WebSocket connection/communication errors
	CategoryWebSocket Category = "websocket"

	// CategoryInternal indicates internal server errors
	CategoryInternal Category = "internal"

	// CategoryGraph indicates graph building/snapshot errors
	CategoryGraph Category = "graph"
)

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// Parse Subcategories
const (
	// SubcategoryParseInvalidIdentity indicates a malformed clock identity
	SubcategoryParseInvalidIdentity = "invalid_identity"

	// SubcategoryParseInvalidTime indicates a non-finite or malformed time value
	SubcategoryParseInvalidTime = "invalid_time"

	// SubcategoryParseEmptyRequest indicates the request carried no payload
	SubcategoryParseEmptyRequest = "empty_request"
)

// Convert Subcategories
const (
	// SubcategoryConvertNoPath indicates no mapping chain connects the clocks
	SubcategoryConvertNoPath = "no_path"

	// SubcategoryConvertUnknownClock indicates a clock type outside the vocabulary
	SubcategoryConvertUnknownClock = "unknown_clock_type"

	// SubcategoryConvertInvalidMapping indicates a mapping that cannot convert
	SubcategoryConvertInvalidMapping = "invalid_mapping"

	// SubcategoryConvertConflict indicates contradicting mappings for one pair
	SubcategoryConvertConflict = "conflict"
)

// WebSocket Subcategories
const (
	// SubcategoryWSConnection indicates connection establishment failed
	SubcategoryWSConnection = "connection"

	// SubcategoryWSRead indicates error reading from WebSocket
	SubcategoryWSRead = "read"

	// SubcategoryWSWrite indicates error writing to WebSocket
	SubcategoryWSWrite = "write"

	// SubcategoryWSUpgrade indicates WebSocket upgrade failed
	SubcategoryWSUpgrade = "upgrade"

	// SubcategoryWSClosed indicates connection was closed
	SubcategoryWSClosed = "closed"
)

// Graph Subcategories
const (
	// SubcategoryGraphBuild indicates snapshot building failed
	SubcategoryGraphBuild = "build"

	// SubcategoryGraphEmpty indicates the graph holds no nodes (not necessarily an error)
	SubcategoryGraphEmpty = "empty"
)

// Internal Subcategories
const (
	// SubcategoryInternalPanic indicates a panic was recovered
	SubcategoryInternalPanic = "panic"

	// SubcategoryInternalConfig indicates configuration error
	SubcategoryInternalConfig = "config"

	// SubcategoryInternalState indicates invalid internal state
	SubcategoryInternalState = "invalid_state"
)
