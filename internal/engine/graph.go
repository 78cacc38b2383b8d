package engine

import (
	"context"
	"fmt"

	"github.com/yangwenmai/leadsniper/internal/model"
)

// Task is one node of the qualification graph. A task sees only the outputs
// of the tasks it names in Needs.
type Task interface {
	Name() string
	Needs() []string
	Run(ctx context.Context, in *RunState) (any, error)
}

// State is a point in a single lead's pipeline run.
type State string

const (
	StateCreated          State = "created"
	StateSignalsExtracted State = "signals_extracted"
	StateResearched       State = "researched"
	StatePitched          State = "pitched"
	StateAudited          State = "audited"
	StateApproved         State = "approved"
	StateRejected         State = "rejected"
	StateErrored          State = "errored"
)

// Task names of the qualification pipeline.
const (
	TaskSignals  = "signals"
	TaskResearch = "research"
	TaskPitch    = "pitch"
	TaskAudit    = "audit"
)

var milestones = map[string]State{
	TaskSignals:  StateSignalsExtracted,
	TaskResearch: StateResearched,
	TaskPitch:    StatePitched,
	TaskAudit:    StateAudited,
}

// Observer is notified of every state a run passes through.
type Observer func(ctx context.Context, s State)

// RunState is the read-only input of a task: the raw lead plus the outputs of
// its declared upstream tasks.
type RunState struct {
	Lead    model.RawLead
	outputs map[string]any
}

// Signals returns the signal extraction output, or nil if not an input.
func (r *RunState) Signals() *model.SignalSection {
	v, _ := r.outputs[TaskSignals].(*model.SignalSection)
	return v
}

// Research returns the research output, or nil if not an input.
func (r *RunState) Research() *model.ResearchSection {
	v, _ := r.outputs[TaskResearch].(*model.ResearchSection)
	return v
}

// Pitch returns the pitch output, or nil if not an input.
func (r *RunState) Pitch() *model.PitchSection {
	v, _ := r.outputs[TaskPitch].(*model.PitchSection)
	return v
}

// Graph is a validated DAG of tasks with a fixed execution order.
type Graph struct {
	order []Task
}

// NewGraph validates tasks and computes a deterministic topological order.
// Ties are broken by declaration order.
func NewGraph(tasks ...Task) (*Graph, error) {
	byName := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		if _, dup := byName[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate task %q", t.Name())
		}
		byName[t.Name()] = t
	}
	for _, t := range tasks {
		for _, dep := range t.Needs() {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("task %q needs unknown task %q", t.Name(), dep)
			}
		}
	}

	done := make(map[string]bool, len(tasks))
	order := make([]Task, 0, len(tasks))
	for len(order) < len(tasks) {
		progressed := false
		for _, t := range tasks {
			if done[t.Name()] || !ready(t, done) {
				continue
			}
			done[t.Name()] = true
			order = append(order, t)
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("task graph has a cycle")
		}
	}
	return &Graph{order: order}, nil
}

func ready(t Task, done map[string]bool) bool {
	for _, dep := range t.Needs() {
		if !done[dep] {
			return false
		}
	}
	return true
}

// Order returns the task names in execution order.
func (g *Graph) Order() []string {
	names := make([]string, len(g.order))
	for i, t := range g.order {
		names[i] = t.Name()
	}
	return names
}

// Run executes the tasks one at a time. On failure it returns a *StepError and
// an empty context: partial output is never exposed.
func (g *Graph) Run(ctx context.Context, lead model.RawLead, obs Observer) (model.PipelineContext, error) {
	notify := func(s State) {
		if obs != nil {
			obs(ctx, s)
		}
	}
	notify(StateCreated)

	outputs := make(map[string]any, len(g.order))
	for _, t := range g.order {
		if err := ctx.Err(); err != nil {
			notify(StateErrored)
			return model.PipelineContext{}, &StepError{Step: t.Name(), Err: err}
		}

		in := &RunState{Lead: lead, outputs: make(map[string]any, len(t.Needs()))}
		for _, dep := range t.Needs() {
			in.outputs[dep] = outputs[dep]
		}
		out, err := t.Run(ctx, in)
		if err != nil {
			notify(StateErrored)
			return model.PipelineContext{}, &StepError{Step: t.Name(), Err: err}
		}
		outputs[t.Name()] = out
		if s, ok := milestones[t.Name()]; ok {
			notify(s)
		}
	}

	pc := assemble(outputs)
	if pc.Audit != nil {
		if pc.Audit.Approved {
			notify(StateApproved)
		} else {
			notify(StateRejected)
		}
	}
	return pc, nil
}

func assemble(outputs map[string]any) model.PipelineContext {
	var pc model.PipelineContext
	for _, out := range outputs {
		switch v := out.(type) {
		case *model.SignalSection:
			pc.Signals = v
		case *model.ResearchSection:
			pc.Research = v
		case *model.PitchSection:
			pc.Pitch = v
		case *model.AuditSection:
			pc.Audit = v
		}
	}
	return pc
}
