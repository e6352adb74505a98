// Package graph implements the structural edit operations of a conversation
// script.
//
// Every function is pure: the input graph is deep-copied and never modified,
// so a snapshot taken before a call stays an independent copy.
//
// After any structural operation the graph satisfies:
//
//   - node ids are unique and sequential (node_0 .. node_{n-1}), each id
//     encoding the node's array index;
//   - every edge references two existing nodes;
//   - ignoring loop targets, the graph is a rooted tree.
//
// Operations referencing an unknown node return domain.ErrNodeNotFound and
// the input unchanged. Operations that would break the tree shape return
// domain.ErrTreeShape.
package graph
