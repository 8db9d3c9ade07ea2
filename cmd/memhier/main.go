// Command memhier runs a synthetic workload through a cache hierarchy backed
// by the reference DRAM controller.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	Execute()
	atexit.Exit(0)
}
