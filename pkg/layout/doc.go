// Package layout assigns canvas positions to the nodes of a flow graph.
//
// # Overview
//
// The engine is a layered (Sugiyama-style) graph drawing algorithm tuned for
// the tree-shaped conversation scripts of the editor. It runs in three phases:
//
//  1. Ranking: every node gets a rank equal to its distance from the root
//     along structural edges (breadth-first). Loop targets are ignored.
//  2. Ordering: nodes within a rank are ordered to minimize edge crossings
//     using alternating barycenter sweeps. Crossings between adjacent ranks
//     are counted with a Fenwick tree and the best ordering seen is kept.
//  3. Coordinates: ranks are stacked vertically with a fixed separation and
//     nodes are placed horizontally near the barycenter of their neighbours,
//     never closer than NodeWidth+NodeSep to their left sibling.
//
// The result depends only on the nodes and edges given: prior positions are
// never read, so the same graph always produces the same positions.
//
// # Robustness
//
// The engine is also run on graphs restored from storage or snapshots, which
// may be malformed. Dangling edges, self edges, duplicate ids and cycles are
// tolerated: nodes unreachable from a root become additional roots.
package layout
