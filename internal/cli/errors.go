package cli

import (
	"encoding/json"
	"errors"
	"fmt"
)

// errorOutput is the JSON shape of a command failure.
type errorOutput struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// outputErrorCommon normalizes error emission across commands, respecting
// json vs text formats so scripts always get machine-readable failures.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	if globals != nil && globals.jsonOutput() {
		out := errorOutput{Type: "error", Code: code, Message: message}
		if len(hint) > 0 {
			out.Hint = hint[0]
		}
		json.NewEncoder(globals.Stdout).Encode(out)
	} else if globals != nil {
		fmt.Fprintf(globals.Stderr, "Error [%s]: %s", code, message)
		if len(hint) > 0 && hint[0] != "" {
			fmt.Fprintf(globals.Stderr, " (hint: %s)", hint[0])
		}
		fmt.Fprintln(globals.Stderr)
	}
	return errors.New(message)
}

// writeJSON emits one result object on stdout.
func writeJSON(globals *Globals, v any) error {
	return json.NewEncoder(globals.Stdout).Encode(v)
}
