// This program runs the deploy and interaction scripts for the raffle, fund
// me and simple storage contracts.
package main

import (
	"fmt"
	"os"

	"github.com/ardanlabs/lottery/app/tooling/lottery/commands"
	"github.com/ardanlabs/lottery/foundation/logger"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("LOTTERY")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := commands.Execute(build, log); err != nil {
		log.Errorw("lottery", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}
