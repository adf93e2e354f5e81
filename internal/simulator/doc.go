// Package simulator provides an in-memory device backend.
//
// It implements executor.Backend against a mutable UI hierarchy instead of
// a real accessibility service, so the agent can run end to end without a
// device: launching registered apps swaps the visible screen, text entry
// mutates node text, and every mutation raises the UI-change signal.
package simulator
