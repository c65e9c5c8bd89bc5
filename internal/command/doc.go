// Package command runs programs on the privileged host and demultiplexes
// the events the host streams back.
//
// A Command builds a spawn request, registers a callback with the bridge and
// routes each tagged event it receives: Stdout and Stderr chunks to the
// matching OutputStream, Error and Terminated to the session's error and
// close events. Spawn returns as soon as the host acknowledges the process;
// Execute waits for the terminal event and returns the aggregated output.
//
// Example:
//
//	cmd := command.New(bridge, "git", []string{"status"}, nil)
//	out, err := cmd.Execute(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%s", out.Stdout)
package command
