package runtime

import "fmt"

// ErrorKind is the status type shared by every fallible operation.
// The ordering is significant: SUCCESS is the lowest value and
// RUNTIME_NOT_STARTED the highest, so callers may compare severities.
type ErrorKind int

const (
	Success ErrorKind = iota
	AllocationError
	UnexpectedType
	ErrorExpression
	MiscellaneousError
	OutOfBounds
	SigningError
	UnsafeExpression
	Malformed
	RuntimeNotStarted
)

// numErrorKinds is the number of defined kinds; used to size pinned tables.
const numErrorKinds = int(RuntimeNotStarted) + 1

var errorKindNames = [...]string{
	Success:            "SUCCESS",
	AllocationError:    "ALLOCATION_ERROR",
	UnexpectedType:     "UNEXPECTED_TYPE",
	ErrorExpression:    "ERROR_EXPRESSION",
	MiscellaneousError: "MISCELLANEOUS_ERROR",
	OutOfBounds:        "OUT_OF_BOUNDS",
	SigningError:       "SIGNING_ERROR",
	UnsafeExpression:   "UNSAFE_EXPRESSION",
	Malformed:          "MALFORMED",
	RuntimeNotStarted:  "RUNTIME_NOT_STARTED",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error lets an ErrorKind travel through Go error plumbing.
func (k ErrorKind) Error() string {
	return "wlr: " + k.String()
}

// Failed reports whether k is anything other than Success.
func (k ErrorKind) Failed() bool {
	return k > Success
}

// Valid reports whether k is one of the defined kinds.
func (k ErrorKind) Valid() bool {
	return k >= Success && k <= RuntimeNotStarted
}

// Err returns nil for Success and k otherwise, for use with
// `if err := rt.X().Err(); err != nil` style call sites.
func (k ErrorKind) Err() error {
	if k == Success {
		return nil
	}
	return k
}
