package cd

import "fmt"

// Error is a failure class reported by the player. Details are wrapped
// around it with fmt.Errorf, so match with errors.Is.
type Error int

const (
	ErrDeviceOpen      Error = 1 // the device could not be opened
	ErrNoMedium        Error = 2 // no disc, or an empty table of contents
	ErrNoAudioTrack    Error = 3 // the disc has no audio tracks
	ErrTrackTable      Error = 4 // a track had a bad start, end or lba
	ErrSectorRead      Error = 5 // a sector could not be read
	ErrOversizedPacket Error = 6 // payload larger than a PES packet allows
	ErrOutOfMemory     Error = 7 // a buffer could not be allocated
)

func (e Error) Error() string {
	return "cdplayer: " + e.name()
}

func (e Error) name() string {
	switch e {
	case ErrDeviceOpen:
		return "unable to open device"
	case ErrNoMedium:
		return "no medium present"
	case ErrNoAudioTrack:
		return "no audio tracks on disc"
	case ErrTrackTable:
		return "unable to read table of contents entry"
	case ErrSectorRead:
		return "unable to read sector"
	case ErrOversizedPacket:
		return "oversized packet"
	case ErrOutOfMemory:
		return "out of memory"
	default:
		return fmt.Sprintf("unknown error code: %v", int(e))
	}
}
