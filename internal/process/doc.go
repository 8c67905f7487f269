// Package process launches and controls subprocesses as process groups.
//
// Start returns a Handle for a long-running command; TerminateTree kills the
// entire group so scripts that spawn helpers leave nothing behind. Run is the
// synchronous counterpart for short commands whose exit status matters.
//
// Example usage:
//
//	h, err := process.Start(process.Spec{
//	    Name:   "display-off",
//	    Binary: "wlopm",
//	    Args:   []string{"--off", "DSI-2"},
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer h.TerminateTree()
package process
