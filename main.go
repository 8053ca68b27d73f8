// Public domain.

package main

import "github.com/soniakeys/dc2cat/internal/dc2prog"

func main() {
	dc2prog.Main()
}
