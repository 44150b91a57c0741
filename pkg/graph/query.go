package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/logger"
	"github.com/graphloom/loom/pkg/normalize"
)

// DefaultTopSeeds caps how many seed nodes a keyword set selects before
// expansion.
const DefaultTopSeeds = 5

// Planner selects answer context out of the graph: it matches keywords to
// seed nodes, then expands a bounded neighborhood around them. Every run
// against the same snapshot and inputs yields the same subgraph.
//
// A Planner should be created using NewPlanner.
type Planner struct {
	store    *Store
	topSeeds int
}

// NewPlannerParams defines the configuration for creating a Planner.
// TopSeeds bounds the seed set per query; zero means DefaultTopSeeds.
type NewPlannerParams struct {
	Store    *Store
	TopSeeds int
}

// NewPlanner creates a Planner reading from the given store.
func NewPlanner(params NewPlannerParams) *Planner {
	topSeeds := params.TopSeeds
	if topSeeds <= 0 {
		topSeeds = DefaultTopSeeds
	}
	return &Planner{store: params.Store, topSeeds: topSeeds}
}

const (
	scoreExactName = 100
	scoreNamePart  = 10
	scoreAttribute = 1
)

type seedScore struct {
	id    string
	score int
}

// AnswerContext selects the subgraph relevant to the given keywords: the
// top-scoring seed nodes plus everything reachable from them within maxHops
// hops, truncated to maxNodes nodes. The whole query runs against a single
// snapshot, so a concurrent commit never produces a torn result. No keyword
// match yields a subgraph with Empty set rather than an error.
func (p *Planner) AnswerContext(
	ctx context.Context,
	keywords []string,
	maxHops int,
	maxNodes int,
) (*common.Subgraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := p.store.Snapshot()
	seeds := p.selectSeeds(snap, keywords)
	if len(seeds) == 0 {
		logger.Debug("[Planner] No seed match", "keywords", keywords)
		return &common.Subgraph{Empty: true}, nil
	}
	return p.expand(ctx, snap, seeds, keywords, maxHops, maxNodes)
}

// ContextFromSeeds expands a neighborhood around externally chosen seed
// nodes, e.g. from embedding similarity. Unknown seed ids are ignored; if
// none exist the result is Empty.
func (p *Planner) ContextFromSeeds(
	ctx context.Context,
	seedIDs []string,
	maxHops int,
	maxNodes int,
) (*common.Subgraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := p.store.Snapshot()
	var seeds []string
	for _, id := range seedIDs {
		if snap.HasNode(id) {
			seeds = append(seeds, id)
		}
	}
	if len(seeds) == 0 {
		return &common.Subgraph{Empty: true}, nil
	}
	sort.Strings(seeds)
	if len(seeds) > p.topSeeds {
		seeds = seeds[:p.topSeeds]
	}
	return p.expand(ctx, snap, seeds, nil, maxHops, maxNodes)
}

// selectSeeds scores every node against the keyword set and returns the
// top-scoring ids. Exact canonical name matches outrank partial name
// matches, which outrank attribute value matches.
func (p *Planner) selectSeeds(snap *Snapshot, keywords []string) []string {
	canonical := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if c := normalize.CanonicalName(kw); c != "" {
			canonical = append(canonical, c)
		}
	}
	if len(canonical) == 0 {
		return nil
	}

	var scored []seedScore
	for _, node := range snap.Nodes() {
		name := normalize.CanonicalName(node.Name)
		score := 0
		for _, kw := range canonical {
			switch {
			case name == kw:
				score += scoreExactName
			case strings.Contains(name, kw) || strings.Contains(kw, name):
				score += scoreNamePart
			default:
				for _, v := range node.Attributes {
					if strings.Contains(normalize.CanonicalName(v), kw) {
						score += scoreAttribute
						break
					}
				}
			}
		}
		if score > 0 {
			scored = append(scored, seedScore{id: node.ID, score: score})
		}
	}

	// Ties break on provenance count (better-attested nodes first), then on
	// id so the seed set is stable across runs.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		pi := len(snap.nodes[scored[i].id].Provenance)
		pj := len(snap.nodes[scored[j].id].Provenance)
		if pi != pj {
			return pi > pj
		}
		return scored[i].id < scored[j].id
	})
	if len(scored) > p.topSeeds {
		scored = scored[:p.topSeeds]
	}

	seeds := make([]string, len(scored))
	for i, s := range scored {
		seeds[i] = s.id
	}
	return seeds
}

// expand breadth-first walks outward from the seeds, one hop at a time, over
// edges in both directions. When maxNodes truncates a frontier, candidates
// are admitted by connecting relation label relevant to the keywords first,
// then strongest connecting edge, then freshest provenance, then id, so
// truncation is deterministic too. Edges are included only when both
// endpoints made it into the selection.
func (p *Planner) expand(
	ctx context.Context,
	snap *Snapshot,
	seeds []string,
	keywords []string,
	maxHops int,
	maxNodes int,
) (*common.Subgraph, error) {
	if maxNodes <= 0 {
		maxNodes = len(snap.nodes)
	}

	canonical := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if c := normalize.CanonicalName(kw); c != "" {
			canonical = append(canonical, c)
		}
	}

	selected := make(map[string]bool)
	frontier := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if len(selected) >= maxNodes {
			break
		}
		if !selected[id] {
			selected[id] = true
			frontier = append(frontier, id)
		}
	}

	for hop := 0; hop < maxHops && len(frontier) > 0 && len(selected) < maxNodes; hop++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates := make(map[string]candidateEdge)
		for _, id := range frontier {
			for _, key := range incidentKeys(snap, id) {
				neighbor := key.Target
				if neighbor == id {
					neighbor = key.Source
				}
				if selected[neighbor] {
					continue
				}
				cand := candidateEdge{
					labelScore: labelRelevance(key.Label, canonical),
					weight:     snap.edges[key].Weight,
				}
				if best, seen := candidates[neighbor]; !seen || cand.stronger(best) {
					candidates[neighbor] = cand
				}
			}
		}

		next := make([]string, 0, len(candidates))
		for id := range candidates {
			next = append(next, id)
		}
		sort.Slice(next, func(i, j int) bool {
			ci, cj := candidates[next[i]], candidates[next[j]]
			if ci.labelScore != cj.labelScore {
				return ci.labelScore > cj.labelScore
			}
			if ci.weight != cj.weight {
				return ci.weight > cj.weight
			}
			ri := provenanceRecency(snap.nodes[next[i]].Provenance)
			rj := provenanceRecency(snap.nodes[next[j]].Provenance)
			if !ri.Equal(rj) {
				return ri.After(rj)
			}
			return next[i] < next[j]
		})

		frontier = frontier[:0]
		for _, id := range next {
			if len(selected) >= maxNodes {
				break
			}
			selected[id] = true
			frontier = append(frontier, id)
		}
	}

	result := &common.Subgraph{Seeds: seeds}
	ids := make([]string, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		node, err := snap.GetNode(id)
		if err != nil {
			continue
		}
		result.Nodes = append(result.Nodes, node)
	}

	for _, edge := range snap.Edges() {
		if selected[edge.Source] && selected[edge.Target] {
			result.Edges = append(result.Edges, edge)
		}
	}

	logger.Debug("[Planner] Context selected",
		"seeds", len(seeds),
		"nodes", len(result.Nodes),
		"edges", len(result.Edges),
	)
	return result, nil
}

// candidateEdge is the strongest connection found from the frontier to a
// candidate neighbor within one hop.
type candidateEdge struct {
	labelScore int
	weight     float64
}

func (c candidateEdge) stronger(other candidateEdge) bool {
	if c.labelScore != other.labelScore {
		return c.labelScore > other.labelScore
	}
	return c.weight > other.weight
}

// labelRelevance counts how many query keywords the relation label touches.
// Labels are stored snake_cased, so they are compared word-wise.
func labelRelevance(label string, canonicalKeywords []string) int {
	if len(canonicalKeywords) == 0 {
		return 0
	}
	text := normalize.CanonicalName(strings.ReplaceAll(label, "_", " "))
	if text == "" {
		return 0
	}
	score := 0
	for _, kw := range canonicalKeywords {
		if strings.Contains(text, kw) || strings.Contains(kw, text) {
			score++
		}
	}
	return score
}

// incidentKeys returns the edge keys touching a node in either direction.
func incidentKeys(snap *Snapshot, id string) []common.EdgeKey {
	keys := make([]common.EdgeKey, 0, len(snap.out[id])+len(snap.in[id]))
	keys = append(keys, snap.out[id]...)
	keys = append(keys, snap.in[id]...)
	return keys
}
