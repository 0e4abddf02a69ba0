// Package sim drives a track manager without the rest of the simulation
// framework: a deterministic ownship on a circular ground track, a
// synthetic GMTI sensor that observes a target set from its own goroutine,
// and a frame runner that calls Process once per tick.
//
// All positions handed to the manager are ownship-relative with
// earth-aligned axes (X east, Y north, Z up), in metres.
package sim
