/*
Package ports defines the driven ports (interfaces) for the convo engine.

These interfaces decouple the turn engine from its collaborators, so that storage,
outbound HTTP, the AI answer service, media handling and email can be swapped
without touching the core.

# Key Interfaces

  - DefinitionStore: loads and saves convo definitions.
  - SessionStore: persists sessions between turns.
  - HTTPActionClient: executes api_call actions.
  - AIAnswerer: answers ai_chat messages.
  - MediaFetcher / MediaHandler: retrieve and process media for process_media nodes.
  - EmailSender: delivers send_email actions and media emails.
  - DistributedLocker: serializes turns on the same session across replicas.
*/
package ports
