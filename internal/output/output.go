package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONMode controls whether output is JSON or human-readable
var JSONMode bool

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Result is the envelope every --json command prints.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Print outputs data. In JSON mode, marshals to JSON. Otherwise calls the textFn.
func Print(data any, textFn func()) {
	if JSONMode {
		out, err := json.MarshalIndent(Result{Success: true, Data: data}, "", "  ")
		if err != nil {
			PrintError(err)
			return
		}
		fmt.Fprintln(stdout, string(out))
		return
	}
	textFn()
}

// PrintEvent writes one compact JSON line. watch --json streams these.
func PrintEvent(kind string, data any) {
	out, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{kind, data})
	if err != nil {
		fmt.Fprintf(stderr, "Error: encode %s event: %v\n", kind, err)
		return
	}
	fmt.Fprintln(stdout, string(out))
}

// PrintError outputs an error and exits 1. In JSON mode the error is
// wrapped in a Result.
func PrintError(err error) {
	if JSONMode {
		out, _ := json.MarshalIndent(Result{Success: false, Error: err.Error()}, "", "  ")
		fmt.Fprintln(stdout, string(out))
		exit(1)
		return
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	exit(1)
}
