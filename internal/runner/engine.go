// Copyright 2025 James Ross
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coppersystems/pipelined/internal/jobctx"
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/obs"
	"github.com/coppersystems/pipelined/internal/pipeline"
	"github.com/coppersystems/pipelined/internal/piper"
)

// runState tracks one node's progress through the job.
type runState struct {
	done bool
	sent map[string]bool // output ports sent on, across every Run call
}

// engine drives one job's FinalizedGraph to completion: seeding
// ConnectInput signals, running quick_run nodes inline and everything else
// on the shared pool (bounded to threadsPerJob concurrent borrows for this
// job), and propagating ReceiveInput/DisconnectInput signals along edges as
// nodes finish, per the per-node state machine in spec.md §4.5.
type engine struct {
	g    *pipeline.FinalizedGraph
	jc   *jobctx.Context
	pool *Pool
	sem  chan struct{} // bounds concurrent pool borrows for this job

	mu      sync.Mutex
	states  []runState
	inQueue []bool

	dirty chan int
}

func newEngine(g *pipeline.FinalizedGraph, jc *jobctx.Context, pool *Pool, threadsPerJob int) *engine {
	return &engine{
		g:       g,
		jc:      jc,
		pool:    pool,
		sem:     make(chan struct{}, threadsPerJob),
		states:  make([]runState, len(g.Nodes)),
		inQueue: make([]bool, len(g.Nodes)),
		dirty:   make(chan int, len(g.Nodes)*4+1),
	}
}

// run seeds every node's declared input ports with ConnectInput, attempts
// every node once, then drains the dirty queue (nodes re-queued by deliver
// as their inputs arrive) until every node is done.
func (e *engine) run(ctx context.Context) error {
	for i, n := range e.g.Nodes {
		seen := map[string]bool{}
		for _, edgeIdx := range e.g.InAdj[i] {
			edge := e.g.Edges[edgeIdx]
			if seen[edge.TargetPort] {
				continue
			}
			seen[edge.TargetPort] = true
			if err := n.Node.ProcessSignal(e.jc, node.Signal{Kind: node.ConnectInput, Port: edge.TargetPort}); err != nil {
				return fmt.Errorf("node %q: connect input: %w", n.ID, err)
			}
		}
	}

	for i := range e.g.Nodes {
		e.schedule(i)
	}

	// Every node either needs no input (Constant, Input) and finishes on
	// its first attempt, or waits on a producer that Build already proved
	// exists and is reachable in this acyclic graph; deliver re-queues a
	// node's consumers as soon as it finishes, so this loop always has
	// another dirty or in-flight entry to wait on until every node is done.
	// A pipeline document with an input port that is never wired (e.g. a
	// Coalesce node missing its "ifnone" edge) is a configuration error
	// that blocks here rather than fails loudly, mirroring the absence of
	// per-node timeouts: the engine does not second-guess a node's Pending.
	results := make(chan attemptResult, len(e.g.Nodes)*2+1)
	remaining := len(e.g.Nodes)

	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case i := <-e.dirty:
			e.mu.Lock()
			e.inQueue[i] = false
			already := e.states[i].done
			e.mu.Unlock()
			if already {
				continue
			}
			e.beginAttempt(ctx, i, results)
		case r := <-results:
			if r.err != nil {
				return r.err
			}
			if r.finished {
				remaining--
			}
		}
	}
	return nil
}

type attemptResult struct {
	finished bool
	err      error
}

// schedule marks node i for an attempt, deduplicating so a node already
// queued is not queued twice.
func (e *engine) schedule(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inQueue[i] || e.states[i].done {
		return
	}
	e.inQueue[i] = true
	e.dirty <- i
}

// beginAttempt runs node i, inline if it is quick_run, otherwise on the
// shared pool bounded by threadsPerJob, and delivers the result on results.
func (e *engine) beginAttempt(ctx context.Context, i int, results chan<- attemptResult) {
	n := e.g.Nodes[i]
	if n.Node.QuickRun() {
		finished, err := e.execute(ctx, i, n)
		results <- attemptResult{finished: finished, err: err}
		return
	}

	e.sem <- struct{}{}
	e.pool.Submit(func() {
		defer func() { <-e.sem }()
		finished, err := e.execute(ctx, i, n)
		results <- attemptResult{finished: finished, err: err}
	})
}

type pendingSend struct {
	port string
	data piper.PipeData
}

// execute calls n.Run once, enforcing the at-most-once-per-output-port
// rule (OutputPortSetTwice), then propagates every distinct send along
// this node's outgoing edges.
func (e *engine) execute(ctx context.Context, i int, n pipeline.NodeEntry) (bool, error) {
	sentPorts := map[string]bool{}
	var sends []pendingSend
	var sendErr error

	send := func(port string, data piper.PipeData) {
		if sentPorts[port] {
			if sendErr == nil {
				sendErr = &node.RunError{Kind: node.ErrOutputPortSetTwice, NodeID: string(n.ID), NodeType: n.NodeType, Port: port}
			}
			return
		}
		sentPorts[port] = true
		sends = append(sends, pendingSend{port: port, data: data})
	}

	spanCtx, span := obs.StartNodeRunSpan(ctx, e.jc.JobID, string(n.ID), n.NodeType)
	started := time.Now()
	state, err := n.Node.Run(e.jc, node.SendFunc(send))
	obs.NodeRunDuration.WithLabelValues(n.NodeType).Observe(time.Since(started).Seconds())
	if err != nil {
		obs.RecordError(spanCtx, err)
		span.End()
		return false, fmt.Errorf("node %q: run: %w", n.ID, err)
	}
	obs.SetSpanSuccess(spanCtx)
	span.End()

	e.mu.Lock()
	if e.states[i].sent == nil {
		e.states[i].sent = map[string]bool{}
	}
	for _, s := range sends {
		if e.states[i].sent[s.port] && sendErr == nil {
			sendErr = &node.RunError{Kind: node.ErrOutputPortSetTwice, NodeID: string(n.ID), NodeType: n.NodeType, Port: s.port}
		}
		e.states[i].sent[s.port] = true
	}
	allSent := e.states[i].sent
	e.mu.Unlock()

	if sendErr != nil {
		return false, sendErr
	}

	for _, s := range sends {
		if err := e.deliver(i, s.port, s.data); err != nil {
			return false, err
		}
	}

	if state.IsDone() {
		if err := e.disconnectUnfiredOutputs(i, n, allSent); err != nil {
			return false, err
		}
		e.mu.Lock()
		e.states[i].done = true
		e.mu.Unlock()
		return true, nil
	}
	return false, nil
}

// deliver sends a ReceiveInput signal, followed by a DisconnectInput, to
// every edge fanning out of node i's named output port, then re-queues each
// target for another attempt.
func (e *engine) deliver(i int, port string, data piper.PipeData) error {
	for _, edgeIdx := range e.g.OutAdj[i] {
		edge := e.g.Edges[edgeIdx]
		if edge.SourcePort != port {
			continue
		}
		target := e.g.Nodes[edge.TargetNode]
		if err := target.Node.ProcessSignal(e.jc, node.Signal{Kind: node.ReceiveInput, Port: edge.TargetPort, Data: data}); err != nil {
			return fmt.Errorf("node %q: receive input: %w", target.ID, err)
		}
		if err := target.Node.ProcessSignal(e.jc, node.Signal{Kind: node.DisconnectInput, Port: edge.TargetPort}); err != nil {
			return fmt.Errorf("node %q: disconnect input: %w", target.ID, err)
		}
		e.schedule(edge.TargetNode)
	}
	return nil
}

// disconnectUnfiredOutputs closes out every edge sourced from a declared
// output port that n finished Done without ever sending on. A node is free
// to finish without using every output it declares (e.g. a branch that only
// ever fires one of several ports); the consumer wired to an unused port
// still needs its DisconnectInput so it can leave Pending instead of
// blocking forever on data that will never arrive.
func (e *engine) disconnectUnfiredOutputs(i int, n pipeline.NodeEntry, sentPorts map[string]bool) error {
	pd, ok := n.Node.(node.PortDeclarer)
	if !ok {
		return nil
	}
	for port := range pd.OutputPorts() {
		if sentPorts[port] {
			continue
		}
		for _, edgeIdx := range e.g.OutAdj[i] {
			edge := e.g.Edges[edgeIdx]
			if edge.SourcePort != port {
				continue
			}
			target := e.g.Nodes[edge.TargetNode]
			if err := target.Node.ProcessSignal(e.jc, node.Signal{Kind: node.DisconnectInput, Port: edge.TargetPort}); err != nil {
				return fmt.Errorf("node %q: disconnect input: %w", target.ID, err)
			}
			e.schedule(edge.TargetNode)
		}
	}
	return nil
}
