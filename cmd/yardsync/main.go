// Yardsync CLI entry point
//
// Yardsync tracks supplier trucks and outbound loadings through the
// weighbridge workflow. Changes are applied locally first and
// synchronized in the background with a shared document in a Git
// repository.
package main

import "github.com/jbctechsolutions/yardsync/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}
