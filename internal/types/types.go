// README: Shared identifier and coordinate value objects used across modules.
package types

// ID is an opaque identifier (route, user, stop, path). Routes and stops are
// UUIDs in the backing store; user ids are provider strings.
type ID string

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}
