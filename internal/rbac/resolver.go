package rbac

import "sort"

// BuildMenu assembles the authorized navigation forest from raw grant
// edges. It is a pure function over one consistent read of the grant graph:
//
//  1. OR-merge: codenames of every edge union into an accumulator per
//     module, so any role granting a capability is enough.
//  2. View gate: modules whose merged set lacks "view" are dropped whole.
//  3. Hierarchy: only modules reachable through surviving ancestors remain;
//     siblings sort by Order ascending, ties kept in first-seen order.
//  4. Projection: permissions emit lexicographically sorted.
//
// Edges are expected to cover active modules only; the repository enforces
// that. A nil or empty input yields an empty, non-nil forest.
func BuildMenu(edges []GrantEdge) []MenuNode {
	type mergedModule struct {
		ref   ModuleRef
		perms map[string]struct{}
	}

	merged := make(map[int64]*mergedModule)
	var seen []int64
	for _, edge := range edges {
		m, ok := merged[edge.Module.ID]
		if !ok {
			m = &mergedModule{ref: edge.Module, perms: make(map[string]struct{})}
			merged[edge.Module.ID] = m
			seen = append(seen, edge.Module.ID)
		}
		for _, codename := range edge.Codenames {
			m.perms[codename] = struct{}{}
		}
	}

	visible := func(id int64) bool {
		m, ok := merged[id]
		if !ok {
			return false
		}
		_, hasView := m.perms[CodenameView]
		return hasView
	}

	// Adjacency in first-seen order keeps ties stable across resolutions.
	childrenOf := make(map[int64][]int64)
	var rootIDs []int64
	for _, id := range seen {
		if !visible(id) {
			continue
		}
		parent := merged[id].ref.ParentID
		if parent == nil {
			rootIDs = append(rootIDs, id)
			continue
		}
		childrenOf[*parent] = append(childrenOf[*parent], id)
	}

	var build func(id int64) MenuNode
	build = func(id int64) MenuNode {
		m := merged[id]
		perms := make([]string, 0, len(m.perms))
		for codename := range m.perms {
			perms = append(perms, codename)
		}
		sort.Strings(perms)

		children := []MenuNode{}
		childIDs := childrenOf[id]
		sort.SliceStable(childIDs, func(i, j int) bool {
			return merged[childIDs[i]].ref.Order < merged[childIDs[j]].ref.Order
		})
		for _, childID := range childIDs {
			children = append(children, build(childID))
		}

		return MenuNode{
			ID:          m.ref.ID,
			Name:        m.ref.Name,
			Icon:        m.ref.Icon,
			Path:        m.ref.Path,
			Order:       m.ref.Order,
			Permissions: perms,
			Children:    children,
		}
	}

	sort.SliceStable(rootIDs, func(i, j int) bool {
		return merged[rootIDs[i]].ref.Order < merged[rootIDs[j]].ref.Order
	})

	menu := make([]MenuNode, 0, len(rootIDs))
	for _, id := range rootIDs {
		menu = append(menu, build(id))
	}
	return menu
}

// MergeCodenames unions codenames from edges of a single module. Used by
// the capability check, which deliberately skips the view gate.
func MergeCodenames(codenames []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codenames))
	for _, c := range codenames {
		set[c] = struct{}{}
	}
	return set
}
