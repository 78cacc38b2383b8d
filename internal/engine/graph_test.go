package engine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/yangwenmai/leadsniper/internal/model"
)

// recordTask records the inputs it saw and returns a fixed output.
type recordTask struct {
	name  string
	needs []string
	out   any
	err   error
	seen  *RunState
	calls *[]string
}

func (t *recordTask) Name() string    { return t.name }
func (t *recordTask) Needs() []string { return t.needs }
func (t *recordTask) Run(_ context.Context, in *RunState) (any, error) {
	t.seen = in
	if t.calls != nil {
		*t.calls = append(*t.calls, t.name)
	}
	return t.out, t.err
}

func TestNewGraph_Order(t *testing.T) {
	// Declared out of order; dependencies decide.
	g, err := NewGraph(
		&recordTask{name: "audit", needs: []string{"signals", "research", "pitch"}},
		&recordTask{name: "pitch", needs: []string{"signals", "research"}},
		&recordTask{name: "research", needs: []string{"signals"}},
		&recordTask{name: "signals"},
	)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	want := []string{"signals", "research", "pitch", "audit"}
	if got := g.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("Order = %v, want %v", got, want)
	}
}

func TestNewGraph_TieBreakByDeclaration(t *testing.T) {
	g, err := NewGraph(
		&recordTask{name: "b"},
		&recordTask{name: "a"},
		&recordTask{name: "c", needs: []string{"a"}},
	)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	want := []string{"b", "a", "c"}
	if got := g.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("Order = %v, want %v", got, want)
	}
}

func TestNewGraph_Errors(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  string
	}{
		{
			name:  "duplicate",
			tasks: []Task{&recordTask{name: "a"}, &recordTask{name: "a"}},
			want:  "duplicate",
		},
		{
			name:  "unknown dependency",
			tasks: []Task{&recordTask{name: "a", needs: []string{"ghost"}}},
			want:  "unknown",
		},
		{
			name: "cycle",
			tasks: []Task{
				&recordTask{name: "a", needs: []string{"b"}},
				&recordTask{name: "b", needs: []string{"a"}},
			},
			want: "cycle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.tasks...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestGraph_RunSeesOnlyDeclaredInputs(t *testing.T) {
	signals := &model.SignalSection{Signals: []model.Signal{{Name: "x", TriggerText: "y", Confidence: 5}}}
	research := &model.ResearchSection{ValueProposition: "v", Hook: "h"}
	st := &recordTask{name: TaskSignals, out: signals}
	rt := &recordTask{name: TaskResearch, needs: []string{TaskSignals}, out: research}
	pt := &recordTask{name: TaskPitch, needs: []string{TaskResearch}, out: &model.PitchSection{Message: "m", WordCount: 1}}

	g, err := NewGraph(st, rt, pt)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	pc, err := g.Run(context.Background(), model.RawLead{Source: "reddit"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rt.seen.Signals() != signals {
		t.Error("research should see signals")
	}
	if pt.seen.Signals() != nil {
		t.Error("pitch did not declare signals and must not see them")
	}
	if pt.seen.Research() != research {
		t.Error("pitch should see research")
	}
	if pt.seen.Lead.Source != "reddit" {
		t.Error("every task sees the raw lead")
	}
	if pc.Signals != signals || pc.Research != research || pc.Pitch == nil || pc.Audit != nil {
		t.Errorf("context = %+v", pc)
	}
}

func TestGraph_RunStopsOnFirstError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	g, err := NewGraph(
		&recordTask{name: "one", out: &model.SignalSection{}, calls: &calls},
		&recordTask{name: "two", needs: []string{"one"}, err: boom, calls: &calls},
		&recordTask{name: "three", needs: []string{"two"}, calls: &calls},
	)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	var states []State
	obs := func(_ context.Context, s State) { states = append(states, s) }
	pc, err := g.Run(context.Background(), model.RawLead{}, obs)

	var se *StepError
	if !errors.As(err, &se) || se.Step != "two" {
		t.Fatalf("err = %v, want StepError for step two", err)
	}
	if !errors.Is(err, boom) {
		t.Error("StepError should unwrap to the cause")
	}
	if !reflect.DeepEqual(calls, []string{"one", "two"}) {
		t.Errorf("calls = %v, want [one two]", calls)
	}
	if pc.Signals != nil {
		t.Error("partial context must be discarded")
	}
	if states[len(states)-1] != StateErrored {
		t.Errorf("last state = %q, want %q", states[len(states)-1], StateErrored)
	}
}

func TestGraph_RunHonoursCancellation(t *testing.T) {
	var calls []string
	g, _ := NewGraph(&recordTask{name: "one", calls: &calls})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Run(ctx, model.RawLead{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(calls) != 0 {
		t.Error("no task should run after cancellation")
	}
}

func TestGraph_LifecycleStates(t *testing.T) {
	for _, tt := range []struct {
		score float64
		last  State
	}{
		{85, StateApproved},
		{50, StateRejected},
	} {
		g, err := NewPipeline(&StubGenerator{AuditScore: tt.score}, fixedValidator{}, 80)
		if err != nil {
			t.Fatalf("NewPipeline: %v", err)
		}
		var states []State
		_, err = g.Run(context.Background(), model.RawLead{Source: "reddit"}, func(_ context.Context, s State) {
			states = append(states, s)
		})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		want := []State{StateCreated, StateSignalsExtracted, StateResearched, StatePitched, StateAudited, tt.last}
		if !reflect.DeepEqual(states, want) {
			t.Errorf("score %v: states = %v, want %v", tt.score, states, want)
		}
	}
}
