package grapherror

import (
	"time"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/timesync"
)

// GraphError represents an error in the graph feed with structured context
type GraphError struct {
	Err         error                  // Underlying error
	Category    Category               // Main category
	Subcategory string                 // Optional subcategory
	UserMessage string                 // User-friendly message for UI display
	Context     map[string]interface{} // Additional context for debugging
	Timestamp   time.Time              // When the error occurred
}

// Error implements the error interface
func (e *GraphError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.UserMessage
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *GraphError) Unwrap() error {
	return e.Err
}

// New creates a new GraphError with the specified category and messages
func New(category Category, err error, userMsg string) *GraphError {
	return &GraphError{
		Err:         err,
		Category:    category,
		UserMessage: userMsg,
		Context:     make(map[string]interface{}),
		Timestamp:   time.Now(),
	}
}

// Newf creates a new GraphError with a formatted error message
func Newf(category Category, userMsg, format string, args ...interface{}) *GraphError {
	return &GraphError{
		Err:         errors.Newf(format, args...),
		Category:    category,
		UserMessage: userMsg,
		Context:     make(map[string]interface{}),
		Timestamp:   time.Now(),
	}
}

// FromTimesync categorizes a sync-domain error by its sentinel. Unrecognized
// errors land in CategoryInternal.
func FromTimesync(err error) *GraphError {
	switch {
	case errors.Is(err, timesync.ErrNoPathFound):
		return New(CategoryConvert, err,
			"No conversion path connects those clocks").
			WithSubcategory(SubcategoryConvertNoPath)
	case errors.Is(err, timesync.ErrUnrecognizedClockType):
		return New(CategoryConvert, err,
			"Unrecognized clock type").
			WithSubcategory(SubcategoryConvertUnknownClock)
	case errors.Is(err, timesync.ErrInvalidMapping):
		return New(CategoryConvert, err,
			"The requested mapping cannot convert timestamps").
			WithSubcategory(SubcategoryConvertInvalidMapping)
	case errors.Is(err, timesync.ErrConflictingMapping):
		return New(CategoryConvert, err,
			"Contradicting mappings exist for this clock pair").
			WithSubcategory(SubcategoryConvertConflict)
	default:
		return New(CategoryInternal, err, "")
	}
}

// WithSubcategory adds a subcategory to the error
func (e *GraphError) WithSubcategory(sub string) *GraphError {
	e.Subcategory = sub
	return e
}

// WithContext adds a context key-value pair for debugging
func (e *GraphError) WithContext(key string, value interface{}) *GraphError {
	e.Context[key] = value
	return e
}

// WithContextMap adds multiple context key-value pairs
func (e *GraphError) WithContextMap(ctx map[string]interface{}) *GraphError {
	for k, v := range ctx {
		e.Context[k] = v
	}
	return e
}
