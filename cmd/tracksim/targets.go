package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/trackcorr/internal/sim"
	"github.com/banshee-data/trackcorr/internal/tracks"
)

// buildTargets scatters n targets in a 3-12 km annulus around the origin.
// Every fourth target is airborne and fast; the rest are ground movers.
func buildTargets(n int, seed uint64) []sim.Target {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]sim.Target, 0, n)
	for i := range n {
		bearing := rng.Float64() * 2 * math.Pi
		dist := 3000 + rng.Float64()*9000
		heading := rng.Float64() * 2 * math.Pi

		t := sim.Target{
			Target: tracks.Target{
				ID:   tracks.TargetID(fmt.Sprintf("tgt-%02d", i+1)),
				Kind: tracks.KindGround,
			},
			Position: r3.Vector{X: dist * math.Cos(bearing), Y: dist * math.Sin(bearing)},
		}
		speed := 5 + rng.Float64()*15
		if i%4 == 3 {
			t.Kind = tracks.KindAir
			t.Position.Z = 1000 + rng.Float64()*4000
			speed = 100 + rng.Float64()*150
		}
		t.Velocity = r3.Vector{X: speed * math.Cos(heading), Y: speed * math.Sin(heading)}
		out = append(out, t)
	}
	return out
}
