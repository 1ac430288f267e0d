// Package gridfile loads task graphs declared in HCL. A grid file is a
// list of task blocks, each naming a registered handler, an optional
// arguments block decoded into the handler's input struct, and the names
// of the tasks it depends on:
//
//	task "print" "greet" {
//	  depends_on = ["fetch"]
//	  arguments {
//	    message = "done: ${env.USER}"
//	  }
//	}
//
// Load parses and validates a file against a Registry; Build wires the
// resulting spec into a taskgrid.Graph for execution.
package gridfile
