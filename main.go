// The main package for the spindle executable.
package main

import "github.com/spindlehq/spindle/cmd"

func main() {
	cmd.Execute()
}
