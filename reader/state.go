package reader

import "fmt"

// State is the life cycle stage of a Reader.
type State int32

const (
	Stopped State = iota
	Starting
	OpeningDevice
	Paused
	Playing
	Failed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case OpeningDevice:
		return "opening device"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Active reports whether the read loop owns the device in this state.
func (s State) Active() bool {
	return s == Playing || s == Paused
}
