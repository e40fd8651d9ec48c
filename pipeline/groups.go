package pipeline

// PhaseGroup represents a group of phases that can be executed together.
// Phases in the same group have the same priority level.
type PhaseGroup struct {
	// Priority is the execution priority of this group
	Priority PhasePriority

	// Phases contains all phases in this group, in registration order
	Phases []*PhaseConfig

	// Parallel indicates if phases in this group can run concurrently
	Parallel bool
}

// PhaseCount returns the number of phases in the group.
func (g *PhaseGroup) PhaseCount() int {
	return len(g.Phases)
}

// Names returns the names of all phases in the group.
func (g *PhaseGroup) Names() []string {
	names := make([]string, len(g.Phases))
	for i, cfg := range g.Phases {
		names[i] = cfg.Phase.Name()
	}
	return names
}

// StandardGroups defines the standard phase execution groups for HL7
// message validation. Structure runs alone first; the field level schema
// checks are independent of each other; custom rules run last.
var StandardGroups = []struct {
	Priority PhasePriority
	Parallel bool
	Phases   []PhaseID
}{
	{
		Priority: PriorityFirst,
		Parallel: false,
		Phases:   []PhaseID{PhaseIDStructure},
	},
	{
		Priority: PriorityNormal,
		Parallel: true,
		Phases:   []PhaseID{PhaseIDCardinality, PhaseIDDataTypes, PhaseIDTables},
	},
	{
		Priority: PriorityLast,
		Parallel: false,
		Phases:   []PhaseID{PhaseIDRules},
	},
}

// StandardPriority returns the priority and parallel flag StandardGroups
// assigns to id. Unknown ids get PriorityNormal.
func StandardPriority(id PhaseID) (PhasePriority, bool) {
	for _, g := range StandardGroups {
		for _, pid := range g.Phases {
			if pid == id {
				return g.Priority, g.Parallel
			}
		}
	}
	return PriorityNormal, true
}

// ExecutionPlan represents a planned order of phase execution.
type ExecutionPlan struct {
	Groups []*PhaseGroup
}

// NewExecutionPlan creates an execution plan from phase groups.
func NewExecutionPlan(groups []*PhaseGroup) *ExecutionPlan {
	return &ExecutionPlan{
		Groups: groups,
	}
}

// PhaseNames returns all phase names in execution order.
func (p *ExecutionPlan) PhaseNames() []string {
	var names []string
	for _, group := range p.Groups {
		names = append(names, group.Names()...)
	}
	return names
}

// TotalPhases returns the total number of phases.
func (p *ExecutionPlan) TotalPhases() int {
	count := 0
	for _, group := range p.Groups {
		count += len(group.Phases)
	}
	return count
}

// ParallelPhases returns the number of phases that can run in parallel.
func (p *ExecutionPlan) ParallelPhases() int {
	count := 0
	for _, group := range p.Groups {
		if group.Parallel && len(group.Phases) > 1 {
			count += len(group.Phases)
		}
	}
	return count
}
