// Package agent implements the orchestration graph that answers one user
// prompt: a fixed state machine (assistant -> optional tool round -> final
// answer) over a chat model with a bound tool registry, in either synchronous
// or streaming mode.
package agent
