package lock

// dependencyGraph is the wait-for relation: an edge A -> B means
// transaction A is blocked on a lock that B currently holds. Nodes are
// numeric transaction ids. The manager's mutex guards every call.
type dependencyGraph struct {
	edges map[int64]map[int64]struct{}
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{edges: make(map[int64]map[int64]struct{})}
}

func (g *dependencyGraph) addEdge(from, to int64) {
	if from == to {
		return
	}
	targets, ok := g.edges[from]
	if !ok {
		targets = make(map[int64]struct{})
		g.edges[from] = targets
	}
	targets[to] = struct{}{}
}

func (g *dependencyGraph) removeEdge(from, to int64) {
	targets, ok := g.edges[from]
	if !ok {
		return
	}
	delete(targets, to)
	if len(targets) == 0 {
		delete(g.edges, from)
	}
}

// removeNode drops every edge into or out of tid.
func (g *dependencyGraph) removeNode(tid int64) {
	delete(g.edges, tid)
	for from, targets := range g.edges {
		delete(targets, tid)
		if len(targets) == 0 {
			delete(g.edges, from)
		}
	}
}

// removeOutgoing drops every edge out of tid, used when tid stops
// waiting.
func (g *dependencyGraph) removeOutgoing(tid int64) {
	delete(g.edges, tid)
}

// hasCycleFrom reports whether a cycle is reachable from start. Only
// the subgraph reachable from the requester is searched; a cycle that
// does not involve the new request cannot have been created by it.
func (g *dependencyGraph) hasCycleFrom(start int64) bool {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[int64]int)

	var visit func(node int64) bool
	visit = func(node int64) bool {
		state[node] = inStack
		for next := range g.edges[node] {
			switch state[next] {
			case inStack:
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		state[node] = done
		return false
	}
	return visit(start)
}
