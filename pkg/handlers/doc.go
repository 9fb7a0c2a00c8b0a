// Package handlers implements the Subconscious AI tools once, independent
// of how they are hosted.
//
// Every handler has the shape of [Func]: it validates its arguments,
// obtains a bearer token from the supplied [token.Provider], calls the
// backend through the retrying API client and returns a [Result]. Failures
// are translated into stable codes by [FromError]; handlers never return
// Go errors.
package handlers
