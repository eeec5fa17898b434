// Command replicator runs the self-replicating solar factory simulation
// engine described by a spec document.
package main

import "github.com/solarforge/replicator/internal/adapters/simcli"

func main() {
	simcli.Execute()
}
