// Package actuation supervises display power transitions.
//
// Turning the panel off runs an external script that may take a while and
// may spawn helpers of its own. The Supervisor owns the handle of the one
// script allowed in flight and kills its whole process tree whenever a new
// power command supersedes it.
package actuation
