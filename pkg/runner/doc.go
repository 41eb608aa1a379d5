/*
Package runner implements the interactive loop that drives a convo session
from a terminal or a pipe.

The runner starts (or resumes) a session, hands every TurnResponse to an
IOHandler and feeds the handler's input back as the next turn, until the
conversation completes, input ends or the process is interrupted.

# Key Components

  - Runner: the loop, with signal-aware cancellation.
  - IOHandler: decouples how turns are presented and input is read.
  - TextHandler: interactive CLI usage with optional markdown rendering.
  - JSONHandler: JSON-Lines for headless hosts and scripts.

# Usage

	r := runner.New(
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithSessionID(resumeID),
	)
	if err := r.Run(ctx, engine, domain.StartRequest{ConvoID: "support"}); err != nil {
		log.Fatal(err)
	}
*/
package runner
