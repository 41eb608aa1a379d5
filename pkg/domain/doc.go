/*
Package domain contains the core models of the convo engine.

It defines the graph a convo is made of (Definition, Node, Transition, Condition,
Action, ValidationRule), the tagged-union Value used for session context, the
persisted Session, and the Turn request/response contract. The package is free
of I/O so that every adapter and the runtime can share it.

# Key Entities

  - Definition: a versioned graph of nodes with a start node.
  - Node: one step of a dialogue (message, menu, input, action, AI, media, end).
  - Value / Context: JSON-shaped session state read by templates and conditions.
  - Session: the per-user transcript and position in a convo.
  - TurnResponse: what a transport renders after every message.
*/
package domain
