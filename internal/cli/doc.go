// Package cli holds the wiring behind the bozchat commands: opening the
// configured store, building the session stack and serving it.
package cli
