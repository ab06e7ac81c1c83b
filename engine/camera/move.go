package camera

import "github.com/Carmen-Shannon/oxy-trace/common"

// MoveDirection is a discrete camera translation command.
type MoveDirection int

const (
	MoveForward MoveDirection = iota
	MoveBackward
	MoveLeft
	MoveRight
	MoveUp
	MoveDown
)

// String returns the command name.
func (d MoveDirection) String() string {
	switch d {
	case MoveForward:
		return "forward"
	case MoveBackward:
		return "backward"
	case MoveLeft:
		return "left"
	case MoveRight:
		return "right"
	case MoveUp:
		return "up"
	case MoveDown:
		return "down"
	default:
		return "unknown"
	}
}

// DirectionForKey maps a virtual key code to a move command.
// W/S move forward and back, A/D strafe, E/Q move up and down.
//
// Parameters:
//   - keyCode: the virtual key code reported by the window
//
// Returns:
//   - MoveDirection: the mapped command
//   - bool: false if the key is not bound to a move
func DirectionForKey(keyCode uint32) (MoveDirection, bool) {
	switch keyCode {
	case common.KeyW:
		return MoveForward, true
	case common.KeyS:
		return MoveBackward, true
	case common.KeyA:
		return MoveLeft, true
	case common.KeyD:
		return MoveRight, true
	case common.KeyE:
		return MoveUp, true
	case common.KeyQ:
		return MoveDown, true
	}
	return 0, false
}
