// Copyright 2025 James Ross

// Package node defines the node lifecycle contract every pipeline node
// implements: construction-time parameters are already bound by the time a
// Node exists; from there the runner drives it purely through
// ProcessSignal and Run.
package node

import "github.com/coppersystems/pipelined/internal/piper"

// PortDeclarer is implemented by every built-in node to report its ports
// once constructed (construction parameters can fix a port's stub, as
// Constant and Input do). A nil *piper.Stub marks a generic port that
// accepts or produces any type, matching whatever its edge's other end
// turns out to be; the pipeline build step skips type-checking at a
// generic port rather than rejecting it.
type PortDeclarer interface {
	InputPorts() map[string]*piper.Stub
	OutputPorts() map[string]*piper.Stub
}

// State is the result of one Run call.
type State struct {
	done   bool
	reason string
}

// Pending reports that the node cannot make progress yet; reason is a
// short, human-readable explanation surfaced in diagnostics.
func Pending(reason string) State { return State{done: false, reason: reason} }

// Done reports that the node has finished and will not be run again.
func Done() State { return State{done: true} }

func (s State) IsDone() bool       { return s.done }
func (s State) IsPending() bool    { return !s.done }
func (s State) Reason() string     { return s.reason }

// SignalKind identifies which of the three signal variants a Signal carries.
type SignalKind int

const (
	ConnectInput SignalKind = iota
	DisconnectInput
	ReceiveInput
)

// Signal is the sealed set of notifications the runner delivers to a node
// about its input ports. Every ConnectInput for a port precedes any
// ReceiveInput or DisconnectInput on that port; a port's DisconnectInput is
// delivered exactly once and only after its ConnectInput.
type Signal struct {
	Kind SignalKind
	Port string
	Data piper.PipeData
}

// SendFunc is how a node emits a value on one of its declared output ports
// during Run. Calling it twice for the same port on the same node instance
// is a fatal runtime error the runner surfaces as OutputPortSetTwice;
// it is the runner's job to enforce the at-most-once rule, not SendFunc
// itself, since the node has no visibility into what it already sent.
type SendFunc func(port string, data piper.PipeData)

// Node is the full lifecycle contract a pipeline node implements. ctx is
// always a *jobctx.Context, passed as an interface{} here so this package
// has no dependency on the per-job context's shape.
type Node interface {
	// QuickRun reports whether Run may be invoked inline on the admission
	// loop's goroutine instead of being handed to the worker pool. Nodes
	// that do no blocking work (pure constants, cheap forwarding) should
	// return true.
	QuickRun() bool

	// ProcessSignal updates the node's view of its input ports. It never
	// blocks and never calls send.
	ProcessSignal(ctx interface{}, sig Signal) error

	// Run attempts to make progress given everything received so far. It
	// may call send any number of times (at most once per declared output
	// port) and returns Done once no further signals will change its
	// behavior, or Pending(reason) if it is waiting on more input.
	Run(ctx interface{}, send SendFunc) (State, error)
}
