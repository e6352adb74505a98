// Package graph renders conversation graphs for people: Mermaid flowcharts,
// Graphviz DOT and SVG, and a Markdown outline.
package graph
