//go:build windows

package backend

import "os"

// Windows has no termination signals; exits always carry a code.
func signalOf(*os.ProcessState) string { return "" }
