package workflow

import (
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate checks the structural rules a definition must satisfy before
// it can be planned or executed:
//   - at least one trigger and at least one job
//   - step lists are non-empty; every step is exactly one of run/uses
//   - step ids are unique within their job
//   - needs edges reference existing jobs, no self-reference, no cycle
//   - ref filter patterns are syntactically valid, and include/ignore
//     filters for the same ref kind are mutually exclusive
//
// Validation is deterministic: jobs are visited in sorted identifier
// order, so the first reported error is stable.
func Validate(w *Workflow) error {
	if w == nil {
		return structuralf("nil workflow")
	}
	if w.On.Empty() {
		return structuralf("no trigger declared")
	}
	if err := validatePushFilter(w.On.Push); err != nil {
		return err
	}
	if len(w.Jobs) == 0 {
		return structuralf("no jobs")
	}

	for _, id := range sortedJobIDs(w) {
		if id == "" {
			return structuralf("job identifier is empty")
		}
		if err := validateJob(w, id, w.Jobs[id]); err != nil {
			return err
		}
	}

	return validateAcyclic(w)
}

func validateJob(w *Workflow, id string, j Job) error {
	if len(j.Steps) == 0 {
		return structuralf("job %q has no steps", id)
	}

	seenNeeds := map[string]bool{}
	for _, dep := range j.Needs {
		if dep == id {
			return structuralf("job %q needs itself", id)
		}
		if _, ok := w.Jobs[dep]; !ok {
			return structuralf("job %q needs unknown job %q", id, dep)
		}
		if seenNeeds[dep] {
			return structuralf("job %q lists need %q twice", id, dep)
		}
		seenNeeds[dep] = true
	}

	seenIDs := map[string]bool{}
	for i, s := range j.Steps {
		hasRun := s.Run != ""
		hasUses := s.Uses != ""
		if hasRun == hasUses {
			return structuralf("job %q step %d must set exactly one of run/uses", id, i+1)
		}
		if len(s.With) > 0 && !hasUses {
			return structuralf("job %q step %d sets with: without uses:", id, i+1)
		}
		if s.TimeoutMinutes < 0 {
			return structuralf("job %q step %d has negative timeout-minutes", id, i+1)
		}
		if s.ID == "" {
			continue
		}
		if seenIDs[s.ID] {
			return structuralf("job %q has duplicate step id %q", id, s.ID)
		}
		seenIDs[s.ID] = true
	}
	return nil
}

func validatePushFilter(pf *PushFilter) error {
	if pf == nil {
		return nil
	}
	if len(pf.Branches) > 0 && len(pf.BranchesIgnore) > 0 {
		return structuralf("on.push: branches and branches-ignore are mutually exclusive")
	}
	if len(pf.Tags) > 0 && len(pf.TagsIgnore) > 0 {
		return structuralf("on.push: tags and tags-ignore are mutually exclusive")
	}
	for _, group := range [][]string{pf.Branches, pf.BranchesIgnore, pf.Tags, pf.TagsIgnore} {
		for _, pat := range group {
			if pat == "" {
				return structuralf("on.push: empty ref filter pattern")
			}
			if !doublestar.ValidatePattern(pat) {
				return structuralf("on.push: invalid ref filter pattern %q", pat)
			}
		}
	}
	return nil
}

// validateAcyclic proves the needs graph has no cycles using Kahn's
// algorithm. If a cycle exists, a deterministic witness path is extracted
// for the error message.
func validateAcyclic(w *Workflow) error {
	order := kahnOrder(w)
	if len(order) == len(w.Jobs) {
		return nil
	}
	return cycleError(findCycle(w))
}

// kahnOrder returns a deterministic topological ordering of job ids.
// Jobs whose dependencies tie are ordered lexicographically. If the graph
// has a cycle the ordering is partial.
func kahnOrder(w *Workflow) []string {
	ids := sortedJobIDs(w)

	indeg := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		indeg[id] += 0
		for _, dep := range w.Jobs[id].Needs {
			indeg[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}
	for dep := range dependents {
		sort.Strings(dependents[dep])
	}

	var ready []string
	for _, id := range ids {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	out := make([]string, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, next := range dependents[id] {
			indeg[next]--
			if indeg[next] == 0 {
				ready = insertSorted(ready, next)
			}
		}
	}
	return out
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

// findCycle walks the needs graph with a deterministic DFS over sorted
// job ids and extracts one cycle path as a stable witness.
func findCycle(w *Workflow) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	ids := sortedJobIDs(w)
	color := make(map[string]int, len(ids))
	parent := make(map[string]string, len(ids))

	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		deps := append([]string(nil), w.Jobs[id].Needs...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case white:
				parent[dep] = id
				if dfs(dep) {
					return true
				}
			case gray:
				// Back edge id -> dep closes a cycle. Walk parents back
				// to dep to reconstruct it.
				cycle = append(cycle, dep)
				cur := id
				for cur != "" && cur != dep {
					cycle = append(cycle, cur)
					cur = parent[cur]
				}
				cycle = append(cycle, dep)
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white && dfs(id) {
			break
		}
	}

	// Reverse into forward order, keeping the closure.
	out := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		out = append(out, cycle[i])
	}
	return out
}

func sortedJobIDs(w *Workflow) []string {
	ids := make([]string, 0, len(w.Jobs))
	for id := range w.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExecutionOrder returns the deterministic topological ordering of job
// identifiers. The workflow must already be validated; a cycle at this
// point is an invariant violation reported as an error.
func ExecutionOrder(w *Workflow) ([]string, error) {
	order := kahnOrder(w)
	if len(order) != len(w.Jobs) {
		return nil, cycleError(findCycle(w))
	}
	return order, nil
}
