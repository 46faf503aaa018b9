package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFlowTopology is returned when a flow cannot be saved because of its shape.
var ErrInvalidFlowTopology = errors.New("invalid flow topology")

// ErrNodeNotFound is returned when a node ID does not exist in the flow.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when an edge ID does not exist in the flow.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrDuplicateNode is returned when two nodes share an ID.
var ErrDuplicateNode = errors.New("duplicate node id")

// ErrSelfConnection is returned when a connection targets its own source node.
var ErrSelfConnection = errors.New("node cannot connect to itself")

// ErrUnknownNodeType is returned for type tags without a registered definition.
var ErrUnknownNodeType = errors.New("unknown node type")

// ErrNoButtons is returned when a button operation targets a node without quick replies.
var ErrNoButtons = errors.New("node has no buttons")

// ErrFlowNotFound is returned when a flow ID cannot be found.
var ErrFlowNotFound = errors.New("flow not found")

// ErrFlowExists is returned when creating a flow under an id that is already open.
var ErrFlowExists = errors.New("flow already exists")

// ErrSessionNotFound is returned when a preview session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// InvalidFlowTopologyError carries the user-facing message of a rejected save.
type InvalidFlowTopologyError struct {
	Message string
	Roots   []string
}

func (e *InvalidFlowTopologyError) Error() string {
	if len(e.Roots) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (entry points: %s)", e.Message, strings.Join(e.Roots, ", "))
}

func (e *InvalidFlowTopologyError) Unwrap() error {
	return ErrInvalidFlowTopology
}
