// Package interstitial implements the upgrade interstitial: a small state machine
// that loads the full-game product, runs a countdown, lets the player buy or
// dismiss, follows payment transactions and reports exactly one outcome.
//
// The package is split the same way a Bubble Tea program is. Reduce is a pure
// function from (State, Action) to the next State plus a list of Effects.
// Controller owns the State on a single goroutine, feeds it actions from the
// clock, the catalog, the payment gateway and the user, and runs the effects
// against injected collaborators.
package interstitial
