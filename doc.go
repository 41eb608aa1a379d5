/*
Package convo is a conversation execution engine for building chat flows,
support bots and guided forms out of declarative graphs.

A convo is a graph of typed nodes (menus, questions, input collection, API
calls, AI chat, media processing) joined by conditional transitions. The
engine keeps one session per user, advances it one turn per message and
persists it between turns, so the same flow can be served over HTTP, MCP or
an interactive terminal.

# Concept

Each turn loads the session, interprets the user's message against the
current node, runs the node's side effects, then auto-chains through
pass-through nodes until it reaches a node that waits for input or ends the
conversation. The engine returns a transport-agnostic TurnResponse; the host
decides how to render it.

Reserved inputs work on every node: "menu" returns to the start node, "back"
revisits the previous interactive node and "restart" clears the transcript.

# Usage

	engine := convo.New()

	def, err := dsl.New("support").
		Add("welcome").Start("Hi!").Go("menu").
		Add("menu").Menu("How can we help?").
		Option("Sales", "sales").
		Option("Leave", "bye").
		Add("sales").Ask("Your email?", "email").Go("bye").
		Add("bye").End("Thanks, bye!").
		Build()
	if err != nil {
		log.Fatal(err)
	}
	if _, err := engine.CreateConvo(ctx, def); err != nil {
		log.Fatal(err)
	}

	resp, err := engine.StartSession(ctx, domain.StartRequest{ConvoID: "support"})
	// resp.Message == "Hi!\n\nHow can we help?"

	resp, err = engine.SendMessage(ctx, domain.TurnRequest{SessionID: resp.SessionID, Input: "1"})

# Persistence

Definitions and sessions live in memory by default. Use WithDefinitionStore
and WithSessionStore with the adapters under pkg/adapters (file, redis) for
durable storage, and WithLocker when several replicas share a store.
*/
package convo
