// Package documents orders legal document generation as a DAG.
package documents

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrCycle           = errors.New("documents: dependency cycle")
	ErrUnknownDocument = errors.New("documents: unknown document")
)

// Graph is a validated, acyclic document dependency graph.
type Graph struct {
	deps  map[string][]string
	order []string
	rank  map[string]int
}

// NewGraph validates deps (document -> documents it depends on) and
// computes a topological order. Ties are broken by name so the order is
// stable across runs.
func NewGraph(deps map[string][]string) (*Graph, error) {
	indegree := make(map[string]int, len(deps))
	dependents := make(map[string][]string, len(deps))

	for doc, requires := range deps {
		if _, ok := indegree[doc]; !ok {
			indegree[doc] = 0
		}
		for _, r := range requires {
			if _, ok := deps[r]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDocument, doc, r)
			}
			indegree[doc]++
			dependents[r] = append(dependents[r], doc)
		}
	}

	var ready []string
	for doc, n := range indegree {
		if n == 0 {
			ready = append(ready, doc)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(deps))
	for len(ready) > 0 {
		doc := ready[0]
		ready = ready[1:]
		order = append(order, doc)

		next := dependents[doc]
		sort.Strings(next)
		for _, d := range next {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
				sort.Strings(ready)
			}
		}
	}

	if len(order) != len(deps) {
		var stuck []string
		for doc, n := range indegree {
			if n > 0 {
				stuck = append(stuck, doc)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w among %v", ErrCycle, stuck)
	}

	rank := make(map[string]int, len(order))
	for i, d := range order {
		rank[d] = i
	}
	copied := make(map[string][]string, len(deps))
	for k, v := range deps {
		copied[k] = append([]string(nil), v...)
	}
	return &Graph{deps: copied, order: order, rank: rank}, nil
}

// Order returns every document in generation order.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// DependsOn returns the direct prerequisites of doc.
func (g *Graph) DependsOn(doc string) []string {
	return append([]string(nil), g.deps[doc]...)
}

func (g *Graph) Has(doc string) bool {
	_, ok := g.deps[doc]
	return ok
}

// Plan sorts the requested documents into generation order. Unknown
// documents are rejected.
func (g *Graph) Plan(requested []string) ([]string, error) {
	seen := make(map[string]bool, len(requested))
	plan := make([]string, 0, len(requested))
	for _, d := range requested {
		if !g.Has(d) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, d)
		}
		if !seen[d] {
			seen[d] = true
			plan = append(plan, d)
		}
	}
	sort.Slice(plan, func(i, j int) bool { return g.rank[plan[i]] < g.rank[plan[j]] })
	return plan, nil
}

// Generator produces one document for a solicitud.
type Generator interface {
	Generate(ctx context.Context, solicitudID, document string) error
}

type ResultStatus string

const (
	StatusGenerated ResultStatus = "generado"
	StatusFailed    ResultStatus = "fallido"
	StatusSkipped   ResultStatus = "omitido"
)

type Result struct {
	Document string
	Status   ResultStatus
	Err      error
}

// Generate runs the requested documents in order. When a document fails,
// anything in the same batch that depends on it, directly or not, is
// skipped.
func (g *Graph) Generate(ctx context.Context, gen Generator, solicitudID string, requested []string) ([]Result, error) {
	plan, err := g.Plan(requested)
	if err != nil {
		return nil, err
	}

	blocked := make(map[string]bool)
	results := make([]Result, 0, len(plan))
	for _, doc := range plan {
		if g.blockedBy(doc, blocked) {
			blocked[doc] = true
			results = append(results, Result{Document: doc, Status: StatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			blocked[doc] = true
			results = append(results, Result{Document: doc, Status: StatusSkipped, Err: err})
			continue
		}
		if err := gen.Generate(ctx, solicitudID, doc); err != nil {
			blocked[doc] = true
			results = append(results, Result{Document: doc, Status: StatusFailed, Err: err})
			continue
		}
		results = append(results, Result{Document: doc, Status: StatusGenerated})
	}
	return results, nil
}

func (g *Graph) blockedBy(doc string, blocked map[string]bool) bool {
	for _, d := range g.deps[doc] {
		if blocked[d] {
			return true
		}
	}
	return false
}
