package domain

// Captain represents a ride-fulfilling party.
type Captain struct {
	ID    string
	Name  string
	Phone string
	// Vehicle details shown to the requester once the ride is accepted.
	VehicleClass    VehicleClass
	VehicleColor    string
	VehiclePlate    string
	VehicleCapacity int
}

// Location is a geographic position.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are in range.
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Role identifies which side of a ride a participant is on.
type Role string

const (
	RoleUser    Role = "user"
	RoleCaptain Role = "captain"
)
