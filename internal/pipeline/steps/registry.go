// Package steps defines the pipeline's node registry and its state-transition table. Routing is
// a pure function of the node that just ran and the workflow status it left behind.
package steps

import (
	"fmt"

	"github.com/jonathan/apply-autopilot/internal/types"
)

// Node names.
const (
	Scout         = "scout"
	Parser        = "parser"
	Scorer        = "scorer"
	Writer        = "writer"
	Verifier      = "verifier"
	ApprovalGate  = "approval_gate"
	AutoFill      = "auto_fill_executor"
	PacketBuilder = "packet_builder"
	Tracker       = "tracker"

	// End is the pseudo node after tracker.
	End = "end"
)

// Routing events.
const (
	EventDone             = "done"
	EventClosed           = "closed"
	EventAlreadySubmitted = "already_submitted"
	EventApproved         = "approved"
	EventNotApproved      = "not_approved"
	EventSubmitted        = "submitted"
	EventNotSubmitted     = "not_submitted"
)

// Node categories.
const (
	CategoryIntake     = "intake"
	CategoryDrafting   = "drafting"
	CategorySubmission = "submission"
	CategoryTracking   = "tracking"
)

// StepDefinition defines metadata for a pipeline node and where each event leads.
type StepDefinition struct {
	Name     string
	Category string
	Routes   map[string]string
}

// StepRegistry holds all node definitions. Every edge of the graph is listed here.
var StepRegistry = map[string]StepDefinition{
	Scout: {
		Name:     Scout,
		Category: CategoryIntake,
		Routes:   map[string]string{EventDone: Parser, EventAlreadySubmitted: Tracker},
	},
	Parser: {
		Name:     Parser,
		Category: CategoryIntake,
		Routes:   map[string]string{EventDone: Scorer, EventClosed: Tracker},
	},
	Scorer: {
		Name:     Scorer,
		Category: CategoryIntake,
		Routes:   map[string]string{EventDone: Writer, EventClosed: Tracker},
	},
	Writer: {
		Name:     Writer,
		Category: CategoryDrafting,
		Routes:   map[string]string{EventDone: Verifier},
	},
	Verifier: {
		Name:     Verifier,
		Category: CategoryDrafting,
		Routes:   map[string]string{EventDone: ApprovalGate},
	},
	ApprovalGate: {
		Name:     ApprovalGate,
		Category: CategoryDrafting,
		Routes:   map[string]string{EventApproved: AutoFill, EventNotApproved: Tracker},
	},
	AutoFill: {
		Name:     AutoFill,
		Category: CategorySubmission,
		Routes:   map[string]string{EventSubmitted: Tracker, EventNotSubmitted: PacketBuilder},
	},
	PacketBuilder: {
		Name:     PacketBuilder,
		Category: CategorySubmission,
		Routes:   map[string]string{EventDone: Tracker},
	},
	Tracker: {
		Name:     Tracker,
		Category: CategoryTracking,
		Routes:   map[string]string{EventDone: End},
	},
}

// RouteError is returned when the table has no edge for a node and event.
type RouteError struct {
	Step  string
	Event string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("no route from %s on %s", e.Step, e.Event)
}

// EventFor derives the routing event for a node from the status it left behind.
func EventFor(step string, status types.JobStatus) string {
	switch step {
	case Scout:
		if status == types.StatusSubmitted {
			return EventAlreadySubmitted
		}
	case Parser, Scorer:
		if status == types.StatusClosed {
			return EventClosed
		}
	case ApprovalGate:
		if status == types.StatusApproved {
			return EventApproved
		}
		return EventNotApproved
	case AutoFill:
		if status == types.StatusSubmitted {
			return EventSubmitted
		}
		return EventNotSubmitted
	}
	return EventDone
}

// Next returns the node that follows step on event.
func Next(step, event string) (string, error) {
	def, ok := StepRegistry[step]
	if !ok {
		return "", fmt.Errorf("unknown step: %s", step)
	}
	next, ok := def.Routes[event]
	if !ok {
		return "", &RouteError{Step: step, Event: event}
	}
	return next, nil
}

// Route combines EventFor and Next.
func Route(step string, status types.JobStatus) (string, error) {
	return Next(step, EventFor(step, status))
}

// Validate checks that every route targets a known node, that every node is reachable from
// scout, that the graph has no cycles and that tracker is the only way to End.
func Validate() error {
	for name, def := range StepRegistry {
		if def.Name != name {
			return fmt.Errorf("step %s registered under %s", def.Name, name)
		}
		for event, next := range def.Routes {
			if next == End {
				if name != Tracker {
					return fmt.Errorf("step %s routes to end on %s; only tracker may", name, event)
				}
				continue
			}
			if _, ok := StepRegistry[next]; !ok {
				return fmt.Errorf("step %s routes to unknown step %s on %s", name, next, event)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(StepRegistry))
	var visit func(step string) error
	visit = func(step string) error {
		switch state[step] {
		case visiting:
			return fmt.Errorf("cycle through step %s", step)
		case done:
			return nil
		}
		state[step] = visiting
		for _, next := range StepRegistry[step].Routes {
			if next == End {
				continue
			}
			if err := visit(next); err != nil {
				return err
			}
		}
		state[step] = done
		return nil
	}
	if err := visit(Scout); err != nil {
		return err
	}
	for name := range StepRegistry {
		if state[name] != done {
			return fmt.Errorf("step %s is unreachable from %s", name, Scout)
		}
	}
	return nil
}
