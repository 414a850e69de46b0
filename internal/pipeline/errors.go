// Copyright 2025 James Ross
package pipeline

import "fmt"

// BuildErrorKind enumerates the ways a pipeline document can fail to build
// into a FinalizedGraph, mirroring the upstream PipelineBuildError
// taxonomy.
type BuildErrorKind int

const (
	ErrNoNode BuildErrorKind = iota
	ErrTypeMismatch
	ErrHasCycle
	ErrNoSuchOutputPort
	ErrNoSuchInputPort
	ErrInvalidNodeType
	ErrInitNode
	ErrBlobFanOut
)

// BuildError is returned from Build.
type BuildError struct {
	Kind         BuildErrorKind
	EdgeID       EdgeID
	Node         NodeID
	InvalidPort  string
	SourceStub   string
	TargetStub   string
	BadType      string
	Cause        error
}

func (e *BuildError) Error() string {
	switch e.Kind {
	case ErrNoNode:
		return fmt.Sprintf("edge %q references node %q, which does not exist", e.EdgeID, e.Node)
	case ErrTypeMismatch:
		return fmt.Sprintf("edge %q: type mismatch, source is %s but target expects %s", e.EdgeID, e.SourceStub, e.TargetStub)
	case ErrHasCycle:
		return "pipeline graph contains a cycle"
	case ErrNoSuchOutputPort:
		return fmt.Sprintf("edge %q: node %q has no output port %q", e.EdgeID, e.Node, e.InvalidPort)
	case ErrNoSuchInputPort:
		return fmt.Sprintf("edge %q: node %q has no input port %q", e.EdgeID, e.Node, e.InvalidPort)
	case ErrInvalidNodeType:
		return fmt.Sprintf("node %q: unrecognized node type %q", e.Node, e.BadType)
	case ErrInitNode:
		return fmt.Sprintf("node %q: construction failed: %v", e.Node, e.Cause)
	case ErrBlobFanOut:
		return fmt.Sprintf("node %q: output port %q is a Blob and cannot be connected to more than one input", e.Node, e.InvalidPort)
	default:
		return "pipeline build error"
	}
}

func (e *BuildError) Unwrap() error { return e.Cause }
