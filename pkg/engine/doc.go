// Package engine provides the operation-stack control flow behind kitinfo sessions.
//
// # Overview
//
// A session is a queue of operations. The Dispatcher pops the front operation,
// runs the handler bound to it, and hands the handler's Result to the next
// operation. Handlers extend the plan by pushing follow-up operations to the
// front of the queue, so a follow-up always runs before anything queued earlier.
// Every session starts with:
//
//	authenticate, show-main-menu, terminate
//
// and ends when terminate reaches the front. An empty queue also yields terminate.
//
// # Operations
//
//   - authenticate: checks the API credential by listing kits
//   - show-main-menu: list kits, create a kit, or quit
//   - list-and-choose: pick a kit by name; offers to create one when none exist
//   - choose-action: view, update or delete the chosen kit
//   - post-view-prompt: offer to edit the kit just shown
//   - collect-fields: read kit attributes; merges the kit ID for updates
//   - view, save, delete: gateway calls whose outcome is shown to the user
//
// # Results
//
// A Result is either absent or holds a KitID or Fields. Handlers are written
// against the shape they need and adapted to the uniform handler signature, so
// a view handler never sees Fields. A shape mismatch is an internal error.
//
// # Collaborators
//
// The engine defines the interfaces it consumes and never imports their
// implementations:
//
//   - Gateway: the kit API (see package typekit)
//   - Surface: prompts and output (see package console)
//   - EventPublisher: session and operation events (metrics, journal)
//
// # Error Classification
//
// Gateway errors are *EngineError values:
//
//   - Authentication: the credential was rejected. The session is aborted.
//   - Contract: the API answered without the expected field. A warning is shown
//     and the session continues.
//   - Remote: a single request failed. The message, which embeds the status code,
//     is shown and the flow continues (list-and-choose terminates).
//   - Validation: malformed input, defaulted by the surface.
//   - Internal: a broken engine invariant.
//
// # Usage
//
//	d := engine.New(gateway, surface,
//	    engine.WithLogger(logger),
//	    engine.WithPublisher(engine.Publishers{metrics, journal}),
//	)
//	if err := d.Run(ctx); err != nil {
//	    return err
//	}
//	fmt.Println(d.Log())
package engine
