package main

import (
	"github.com/FranLegon/drive-web/cmd"
)

// main is the entry point for the entire application. All logic, argument
// parsing and flag handling are managed by Cobra in the 'cmd' package.
func main() {
	cmd.Execute()
}
