// Command qnetsim runs quantum repeater network simulations.
package main

import "github.com/sarchlab/qnetsim/cmd"

func main() {
	cmd.Execute()
}
