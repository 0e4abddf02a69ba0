// Package units converts the SI quantities the track manager works in
// (metres, metres per second) into display units for the HTTP API.
package units

import (
	"fmt"
	"strings"
)

// Speed units.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
	KTS  = "kts"
)

// Distance units.
const (
	M  = "m"
	KM = "km"
	NM = "nm" // nautical miles
)

// ValidSpeedUnits contains all valid speed unit values.
var ValidSpeedUnits = []string{MPS, MPH, KMPH, KPH, KTS}

// ValidDistanceUnits contains all valid distance unit values.
var ValidDistanceUnits = []string{M, KM, NM}

const (
	mpsToMPH    = 2.2369362920544
	mpsToKPH    = 3.6
	mpsToKnots  = 1.9438444924406
	metresPerNM = 1852.0
)

// IsValidSpeed checks if the given unit is a known speed unit.
func IsValidSpeed(unit string) bool { return contains(ValidSpeedUnits, unit) }

// IsValidDistance checks if the given unit is a known distance unit.
func IsValidDistance(unit string) bool { return contains(ValidDistanceUnits, unit) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ValidSpeedUnitsString returns the speed units for error messages.
func ValidSpeedUnitsString() string { return strings.Join(ValidSpeedUnits, ", ") }

// ValidDistanceUnitsString returns the distance units for error messages.
func ValidDistanceUnitsString() string { return strings.Join(ValidDistanceUnits, ", ") }

// ConvertSpeed converts a speed in metres per second to unit. Unknown units
// return the input unchanged.
func ConvertSpeed(speedMPS float64, unit string) float64 {
	switch unit {
	case MPH:
		return speedMPS * mpsToMPH
	case KMPH, KPH:
		return speedMPS * mpsToKPH
	case KTS:
		return speedMPS * mpsToKnots
	default:
		return speedMPS
	}
}

// ConvertDistance converts a distance in metres to unit. Unknown units
// return the input unchanged.
func ConvertDistance(metres float64, unit string) float64 {
	switch unit {
	case KM:
		return metres / 1000
	case NM:
		return metres / metresPerNM
	default:
		return metres
	}
}

// ParseSpeedUnit validates a query value, defaulting empty to MPS.
func ParseSpeedUnit(s string) (string, error) {
	if s == "" {
		return MPS, nil
	}
	s = strings.ToLower(s)
	if !IsValidSpeed(s) {
		return "", fmt.Errorf("invalid speed unit %q (want one of %s)", s, ValidSpeedUnitsString())
	}
	return s, nil
}

// ParseDistanceUnit validates a query value, defaulting empty to M.
func ParseDistanceUnit(s string) (string, error) {
	if s == "" {
		return M, nil
	}
	s = strings.ToLower(s)
	if !IsValidDistance(s) {
		return "", fmt.Errorf("invalid distance unit %q (want one of %s)", s, ValidDistanceUnitsString())
	}
	return s, nil
}
