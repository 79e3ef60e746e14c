// Package errors provides coded, wrappable errors for the DM engine.
//
// Errors carry a Code, a message, optional metadata, and an optional cause.
// Layers add context by wrapping:
//
//	if err := repo.Get(ctx, id); err != nil {
//	    return errors.Wrap(err, "failed to load session")
//	}
//
// and callers branch on codes rather than strings:
//
//	if errors.IsNotFound(err) {
//	    // treat the entity as unavailable
//	}
//
// Rules engines use FailedPrecondition for unmet gates (an action whose
// requirements do not hold), InvalidArgument for malformed input such as a
// bad dice expression, and NotFound for unknown ids (nodes, monsters,
// sessions). Config validation uses the ValidationBuilder.
package errors
