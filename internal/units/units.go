// Package units converts distances between the internal unit (meters) and the units shown to clients.
package units

import "math"

// MetersPerKilometer is the conversion factor used at the API boundary.
const MetersPerKilometer = 1000.0

// MetersToKilometers converts meters to kilometers rounded to three decimals (one meter).
func MetersToKilometers(m float64) float64 {
	return math.Round(m) / MetersPerKilometer
}

// KilometersToMeters converts kilometers to meters.
func KilometersToMeters(km float64) float64 {
	return km * MetersPerKilometer
}
