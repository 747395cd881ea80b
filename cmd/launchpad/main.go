// ====================================
// File: cmd/launchpad/main.go
// ====================================
package main

import "github.com/rovshanmuradov/curve-launchpad/internal/cli"

func main() {
	cli.Execute()
}
