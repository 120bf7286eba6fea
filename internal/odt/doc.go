// Package odt drives the target's resident console monitor over an open
// transport port.
//
// Ownership boundary:
// - monitor attention and ready-prompt scanning
// - echo-verified transmission of command characters
// - location and register open/deposit, the go command
// - completion detection once control returns to the monitor
//
// Every verified character must be echoed back identically within the
// echo window. The first deviation ends the session: the monitor offers
// no way to tell a lost echo from a rejected command, so nothing here
// retries.
package odt
