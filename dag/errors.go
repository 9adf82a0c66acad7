package dag

import "fmt"

// CycleError reports that Build found a cycle: after peeling every node
// with no unresolved incoming edge, at least one node remains.
type CycleError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// Remaining lists the node IDs that could not be ordered, i.e. every
	// node reachable from or participating in the cycle.
	Remaining []NodeID
}

func (e *CycleError) Error() string {
	return e.Code + ": " + e.Message
}

// DuplicateEdgeError reports that the same (from, to, resultId) triple
// was declared more than once.
type DuplicateEdgeError struct {
	Message string
	Code    string

	From     NodeID
	To       NodeID
	ResultID string
}

func (e *DuplicateEdgeError) Error() string {
	return fmt.Sprintf("%s: %s (from=%s to=%s resultId=%s)", e.Code, e.Message, e.From, e.To, e.ResultID)
}

// DuplicateOutputError reports that an output name was declared more
// than once across the work units passed to orchestrator.New (by two
// units, or twice by one unit). NodeID is the unit that declared it
// first. Build itself never returns this error.
type DuplicateOutputError struct {
	Message string
	Code    string

	NodeID   NodeID
	ResultID string
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("%s: %s (nodeId=%s resultId=%s)", e.Code, e.Message, e.NodeID, e.ResultID)
}

// MissingResultError reports that a node's Operation did not return a
// Result carrying the ResultID an outgoing edge promised.
type MissingResultError struct {
	Message string
	Code    string

	// Producer is the node that should have produced the result.
	Producer NodeID

	// ResultID is the result the consuming edge expected.
	ResultID string
}

func (e *MissingResultError) Error() string {
	return fmt.Sprintf("%s: %s (producer=%s resultId=%s)", e.Code, e.Message, e.Producer, e.ResultID)
}

// OperationError wraps the error returned by a node's Operation.
type OperationError struct {
	Message string
	Code    string

	// NodeID identifies which node's Operation failed.
	NodeID NodeID

	// Cause is the error the Operation returned.
	Cause error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: node %s: %s", e.Code, e.NodeID, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// PredecessorFailedError reports that a node was skipped because at
// least one of its predecessors did not produce the result it depends
// on. FirstCause is the earliest-declared failing predecessor edge's
// error, per the node's incoming edge declaration order.
type PredecessorFailedError struct {
	Message string
	Code    string

	// NodeID identifies the node that was skipped.
	NodeID NodeID

	// Predecessor identifies the failing predecessor that determined
	// FirstCause.
	Predecessor NodeID

	// FirstCause is the error of the first (in declaration order)
	// failing predecessor.
	FirstCause error
}

func (e *PredecessorFailedError) Error() string {
	return fmt.Sprintf("%s: node %s: %s (predecessor=%s)", e.Code, e.NodeID, e.Message, e.Predecessor)
}

func (e *PredecessorFailedError) Unwrap() error {
	return e.FirstCause
}

// CancelledError reports that a node was skipped because the run was
// cancelled before the node's fan-in barrier released it.
type CancelledError struct {
	Message string
	Code    string

	// NodeID identifies the node that observed cancellation.
	NodeID NodeID
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s: node %s: %s", e.Code, e.NodeID, e.Message)
}

// Error codes used across the structured error types above. Stable and
// intended for programmatic matching via errors.As.
const (
	CodeCycleDetected     = "CYCLE_DETECTED"
	CodeDuplicateEdge     = "DUPLICATE_EDGE"
	CodeDuplicateOutput   = "DUPLICATE_OUTPUT"
	CodeMissingResult     = "MISSING_RESULT"
	CodeOperationFailed   = "OPERATION_FAILED"
	CodePredecessorFailed = "PREDECESSOR_FAILED"
	CodeCancelled         = "CANCELLED"
)

func newCycleError(remaining []NodeID) *CycleError {
	return &CycleError{
		Message:   "graph contains a cycle",
		Code:      CodeCycleDetected,
		Remaining: remaining,
	}
}

func newDuplicateEdgeError(e Edge) *DuplicateEdgeError {
	return &DuplicateEdgeError{
		Message:  "edge declared more than once",
		Code:     CodeDuplicateEdge,
		From:     e.From,
		To:       e.To,
		ResultID: e.ResultID,
	}
}

func newMissingResultError(producer NodeID, resultID string) *MissingResultError {
	return &MissingResultError{
		Message:  "operation did not produce the promised result",
		Code:     CodeMissingResult,
		Producer: producer,
		ResultID: resultID,
	}
}

func newOperationError(nodeID NodeID, cause error) *OperationError {
	return &OperationError{
		Message: cause.Error(),
		Code:    CodeOperationFailed,
		NodeID:  nodeID,
		Cause:   cause,
	}
}

func newPredecessorFailedError(nodeID, predecessor NodeID, firstCause error) *PredecessorFailedError {
	return &PredecessorFailedError{
		Message:     "skipped: predecessor failed",
		Code:        CodePredecessorFailed,
		NodeID:      nodeID,
		Predecessor: predecessor,
		FirstCause:  firstCause,
	}
}

func newCancelledError(nodeID NodeID) *CancelledError {
	return &CancelledError{
		Message: "skipped: run cancelled",
		Code:    CodeCancelled,
		NodeID:  nodeID,
	}
}
