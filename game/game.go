// Package game produces and validates the Onoro game-state payloads
// carried opaquely inside Status results. The messaging layer never
// inspects these bytes; only this package and the web client know the
// encoding.
package game

import (
	"errors"
	"fmt"
)

const (
	// PawnsPerPlayer is fixed at 8 for Onoro16.
	PawnsPerPlayer = 8
	// boardWidth is the playable grid width for Onoro16.
	boardWidth = 16
)

var ErrInvalidState = errors.New("invalid game state")

// Color is a pawn color. Black always moves first.
type Color int

const (
	Black Color = iota
	White
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Pawn is one piece on the hex grid.
type Pawn struct {
	X     int32
	Y     int32
	Color Color
}

// State is a full game snapshot: pawn positions plus whose turn it is.
type State struct {
	Pawns     []Pawn
	BlackTurn bool
	TurnNum   uint32
	Finished  bool
}

// DefaultStart is the canonical starting position: the first three
// pawns pre-placed around the board center, white to move.
func DefaultStart() State {
	mid := int32((boardWidth - 1) / 2)
	return State{
		Pawns: []Pawn{
			{X: mid, Y: mid, Color: Black},
			{X: mid + 1, Y: mid + 1, Color: White},
			{X: mid + 1, Y: mid, Color: Black},
		},
		BlackTurn: false,
		TurnNum:   2,
		Finished:  false,
	}
}

// Validate applies the structural checks a state must pass before it
// can be trusted: pawns in bounds once normalized to the board origin,
// at least one black pawn, and white holding either one fewer or
// equally many pawns as black.
func (s State) Validate() error {
	if len(s.Pawns) == 0 {
		return fmt.Errorf("%w: no pawns", ErrInvalidState)
	}

	minX, minY := s.Pawns[0].X, s.Pawns[0].Y
	for _, p := range s.Pawns[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
	}

	var black, white int
	for _, p := range s.Pawns {
		x := uint32(p.X - minX + 1)
		y := uint32(p.Y - minY + 1)
		if x >= boardWidth || y >= boardWidth {
			return fmt.Errorf("%w: pawn out of bounds at (%d, %d)", ErrInvalidState, p.X, p.Y)
		}
		if p.Color == Black {
			black++
		} else {
			white++
		}
	}

	if black > PawnsPerPlayer || white > PawnsPerPlayer {
		return fmt.Errorf("%w: too many pawns: %d black and %d white", ErrInvalidState, black, white)
	}
	if black == 0 {
		return fmt.Errorf("%w: must have at least one black pawn, black moves first", ErrInvalidState)
	}
	if white != black && white != black-1 {
		return fmt.Errorf("%w: white must hold one fewer or equally many pawns as black, found %d black and %d white",
			ErrInvalidState, black, white)
	}
	return nil
}
