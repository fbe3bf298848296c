// Package core defines the conversation data model shared by the agent graph,
// the chat model adapters and the tool subsystem: role-tagged messages, tool
// call requests and the pull-based fragment stream used for incremental
// answers.
package core
