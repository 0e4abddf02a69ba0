package tracks

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/geo/r3"
)

// TargetKind classifies the simulated entity a report or track refers to.
// Kinds are bit flags so a manager filter can accept several at once.
type TargetKind uint32

const (
	KindGround  TargetKind = 1 << iota // Ground vehicle (GMTI)
	KindAir                            // Air vehicle
	KindSurface                        // Surface ship
	KindWeapon                         // Weapon in flight
)

// KindAny is the zero filter; it accepts every target.
const KindAny TargetKind = 0

var kindNames = []struct {
	kind TargetKind
	name string
}{
	{KindGround, "ground"},
	{KindAir, "air"},
	{KindSurface, "surface"},
	{KindWeapon, "weapon"},
}

func (k TargetKind) String() string {
	if k == KindAny {
		return "any"
	}
	var parts []string
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			parts = append(parts, kn.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
	return strings.Join(parts, "|")
}

// ParseTargetKinds folds kind names ("ground", "air", ...) into a filter.
// An empty list yields KindAny.
func ParseTargetKinds(names []string) (TargetKind, error) {
	var k TargetKind
	for _, name := range names {
		found := false
		for _, kn := range kindNames {
			if strings.EqualFold(strings.TrimSpace(name), kn.name) {
				k |= kn.kind
				found = true
				break
			}
		}
		if !found {
			return KindAny, fmt.Errorf("unknown target kind %q", name)
		}
	}
	return k, nil
}

// TargetID identifies the real or simulated entity behind a report. It is
// only compared for equality; it carries no physics.
type TargetID string

// Target is the opaque identity reference carried by reports and tracks.
type Target struct {
	ID   TargetID
	Kind TargetKind
}

// TypeFlags are per-track category bits used by consumers for filtering.
type TypeFlags uint32

const (
	TypeGround        TypeFlags = 1 << iota // Track of a ground target
	TypeAir                                 // Track of an air target
	TypeOnboardSensor                       // Derived from an onboard sensor report
	TypeExternal                            // Inserted directly via AddTrack
)

// Has reports whether all bits in f are set.
func (t TypeFlags) Has(f TypeFlags) bool { return t&f == f }

// Report is a single sensor detection. It is transient: the queue owns it
// between push and pop, and the correlation pass consumes it exactly once.
type Report struct {
	Target    Target
	SensorID  string
	RangeRate float64   // m/s, positive when opening
	Position  r3.Vector // observed position relative to ownship (m)
}

// QueuedReport pairs a report with the signal level it was delivered with.
type QueuedReport struct {
	Report      Report
	SignalLevel float64
}

// TrackState is the conceptual lifecycle state of a live track. Evicted
// tracks leave the table, so there is no evicted state value.
type TrackState uint8

const (
	StateUnassociated TrackState = iota // Just created from a report
	StateAssociated                     // Updated by a report this frame
	StateCoasting                       // Aging with no report this frame
)

func (s TrackState) String() string {
	switch s {
	case StateUnassociated:
		return "unassociated"
	case StateAssociated:
		return "associated"
	case StateCoasting:
		return "coasting"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Track is one tracked-target record. Track values are owned by a Table;
// callers outside the manager only ever hold copies.
type Track struct {
	ID     int
	Target Target
	Type   TypeFlags
	State  TrackState

	// Kinematic state relative to ownship.
	Position     r3.Vector
	Velocity     r3.Vector
	Acceleration r3.Vector

	// Age is the time since the last successful association.
	Age time.Duration

	// Hits counts successful associations, including the spawning report.
	Hits int

	// Diagnostics from the most recent association.
	SignalQuality float64
	LastReport    Report
}

// Range returns the distance from ownship to the track.
func (t *Track) Range() float64 {
	return t.Position.Norm()
}

// Speed returns the magnitude of the ownship-relative velocity.
func (t *Track) Speed() float64 {
	return t.Velocity.Norm()
}

// typeForKind maps a target kind onto track category flags.
func typeForKind(k TargetKind) TypeFlags {
	var f TypeFlags
	if k&KindGround != 0 {
		f |= TypeGround
	}
	if k&(KindAir|KindWeapon) != 0 {
		f |= TypeAir
	}
	return f
}
