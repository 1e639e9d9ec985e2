// Package display renders command output for humans or machines. Commands
// print human-readable text by default and JSON when --json is set.
package display

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON marshals with indentation. All machine output goes through
// here so the format stays uniform across commands.
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// OutputJSON marshals and prints v to stdout.
func OutputJSON(v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
