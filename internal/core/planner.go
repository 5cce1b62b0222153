package core

import (
	"fmt"
	"sync"
)

// plan is computed once; the dependency graph is static.
var plan = sync.OnceValue(func() []Kind {
	kinds, err := PlanKinds(AllKinds(), Kind.Dependencies)
	if err != nil {
		panic(err)
	}
	return kinds
})

// Plan returns the stage order: every kind comes strictly after each kind it
// references. For the built-in kinds this is TestForm, Section, Part,
// PassageSet, Passage, Question, Choice, Tag, QuestionTag.
func Plan() []Kind {
	return append([]Kind(nil), plan()...)
}

// PlanKinds topologically sorts kinds using deps. Among kinds that are ready
// at the same time, the one listed first in kinds wins, so the result is
// deterministic. Dependencies outside kinds are ignored.
func PlanKinds(kinds []Kind, deps func(Kind) []Kind) ([]Kind, error) {
	member := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		member[k] = true
	}

	indegree := make(map[Kind]int, len(kinds))
	dependents := make(map[Kind][]Kind, len(kinds))
	for _, k := range kinds {
		for _, d := range deps(k) {
			if !member[d] {
				continue
			}
			indegree[k]++
			dependents[d] = append(dependents[d], k)
		}
	}

	order := make([]Kind, 0, len(kinds))
	done := make(map[Kind]bool, len(kinds))
	for len(order) < len(kinds) {
		next, found := Kind(-1), false
		for _, k := range kinds {
			if !done[k] && indegree[k] == 0 {
				next, found = k, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("dependency cycle among %d unplanned kinds", len(kinds)-len(order))
		}
		done[next] = true
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}
	return order, nil
}
