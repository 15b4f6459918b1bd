package reader

// SpeedFor picks the drive speed for a buffer that is occupancy percent
// full. An emptying buffer runs the drive at maxSpeed; a nearly full one
// drops to real time. The result is always within [1, maxSpeed].
func SpeedFor(occupancy, maxSpeed int) int {
	if maxSpeed < 1 {
		maxSpeed = 1
	}
	var x int
	switch {
	case occupancy < 25:
		x = maxSpeed
	case occupancy < 50:
		x = maxSpeed / 2
	case occupancy < 70:
		x = maxSpeed / 4
	default:
		x = 1
	}
	return min(max(x, 1), maxSpeed)
}
