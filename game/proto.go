package game

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire schema, kept in sync with the web client:
//
//	message Pawn      { optional sint32 x = 1; optional sint32 y = 2; optional bool black = 3; }
//	message GameState { repeated Pawn pawns = 1; optional bool black_turn = 2;
//	                    optional uint32 turn_num = 3; optional bool finished = 4; }
const (
	pawnFieldX     = 1
	pawnFieldY     = 2
	pawnFieldBlack = 3

	stateFieldPawns     = 1
	stateFieldBlackTurn = 2
	stateFieldTurnNum   = 3
	stateFieldFinished  = 4
)

// Marshal encodes the state into the binary payload returned to
// clients inside a successful Status.
func (s State) Marshal() []byte {
	var buf []byte
	for _, p := range s.Pawns {
		pawn := marshalPawn(p)
		buf = protowire.AppendTag(buf, stateFieldPawns, protowire.BytesType)
		buf = protowire.AppendBytes(buf, pawn)
	}
	buf = protowire.AppendTag(buf, stateFieldBlackTurn, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeBool(s.BlackTurn))
	buf = protowire.AppendTag(buf, stateFieldTurnNum, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(s.TurnNum))
	buf = protowire.AppendTag(buf, stateFieldFinished, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeBool(s.Finished))
	return buf
}

func marshalPawn(p Pawn) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, pawnFieldX, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(int64(p.X)))
	buf = protowire.AppendTag(buf, pawnFieldY, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(int64(p.Y)))
	buf = protowire.AppendTag(buf, pawnFieldBlack, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeBool(p.Color == Black))
	return buf
}

// Unmarshal decodes and validates a binary game-state payload.
func Unmarshal(data []byte) (State, error) {
	var s State
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return State{}, fmt.Errorf("%w: bad tag: %v", ErrInvalidState, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == stateFieldPawns && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return State{}, fmt.Errorf("%w: bad pawn field: %v", ErrInvalidState, protowire.ParseError(n))
			}
			data = data[n:]
			pawn, err := unmarshalPawn(raw)
			if err != nil {
				return State{}, err
			}
			s.Pawns = append(s.Pawns, pawn)
		case num == stateFieldBlackTurn && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return State{}, fmt.Errorf("%w: bad black_turn: %v", ErrInvalidState, protowire.ParseError(n))
			}
			data = data[n:]
			s.BlackTurn = protowire.DecodeBool(v)
		case num == stateFieldTurnNum && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return State{}, fmt.Errorf("%w: bad turn_num: %v", ErrInvalidState, protowire.ParseError(n))
			}
			data = data[n:]
			s.TurnNum = uint32(v)
		case num == stateFieldFinished && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return State{}, fmt.Errorf("%w: bad finished: %v", ErrInvalidState, protowire.ParseError(n))
			}
			data = data[n:]
			s.Finished = protowire.DecodeBool(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return State{}, fmt.Errorf("%w: bad field %d: %v", ErrInvalidState, num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if err := s.Validate(); err != nil {
		return State{}, err
	}
	return s, nil
}

func unmarshalPawn(data []byte) (Pawn, error) {
	var p Pawn
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Pawn{}, fmt.Errorf("%w: bad pawn tag: %v", ErrInvalidState, protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.VarintType {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Pawn{}, fmt.Errorf("%w: bad pawn field %d: %v", ErrInvalidState, num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return Pawn{}, fmt.Errorf("%w: bad pawn varint: %v", ErrInvalidState, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case pawnFieldX:
			p.X = int32(protowire.DecodeZigZag(v))
		case pawnFieldY:
			p.Y = int32(protowire.DecodeZigZag(v))
		case pawnFieldBlack:
			if protowire.DecodeBool(v) {
				p.Color = Black
			} else {
				p.Color = White
			}
		}
	}
	return p, nil
}
