// Command graft drives the method-interception engine from the command
// line: a guided demo, a stress run and a reader for recorded traces.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
