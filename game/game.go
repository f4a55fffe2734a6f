package game

import (
	"encoding/json"
	"fmt"
)

// BoardSize is the number of rows and columns on the board.
const BoardSize = 6

// WinLength is the number of aligned cells required to win.
const WinLength = 4

type Piece string

const (
	Rock     Piece = "ROCK"
	Paper    Piece = "PAPER"
	Scissors Piece = "SCISSORS"
	Special  Piece = "SPECIAL"
	Empty    Piece = "EMPTY"
)

// CombatPieces are the piece types that can attack an occupied cell.
var CombatPieces = []Piece{Rock, Paper, Scissors}

// UnmarshalJSON rejects any string that is not a known piece type.
func (p *Piece) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Piece(s) {
	case Rock, Paper, Scissors, Special, Empty:
		*p = Piece(s)
		return nil
	}
	return fmt.Errorf("unknown piece type %q", s)
}

type Player string

const (
	Player1 Player = "PLAYER1"
	Player2 Player = "PLAYER2"
	None    Player = "NONE"
)

// UnmarshalJSON rejects any string that is not a known player tag.
func (p *Player) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Player(s) {
	case Player1, Player2, None:
		*p = Player(s)
		return nil
	}
	return fmt.Errorf("unknown player %q", s)
}

// Opponent returns the other player. None maps to None.
func (p Player) Opponent() Player {
	switch p {
	case Player1:
		return Player2
	case Player2:
		return Player1
	}
	return None
}

type Phase string

const (
	PhaseReady         Phase = "READY"
	PhaseSelectingCell Phase = "SELECTING_CELL"
	PhaseGameOver      Phase = "GAME_OVER"
)

type Result string

const (
	ResultOngoing    Result = "ONGOING"
	ResultPlayer1Win Result = "PLAYER1_WIN"
	ResultPlayer2Win Result = "PLAYER2_WIN"
	ResultDraw       Result = "DRAW"
)

// WinResult maps a player to that player's win result.
func WinResult(p Player) Result {
	if p == Player1 {
		return ResultPlayer1Win
	}
	return ResultPlayer2Win
}

type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether the position lies on the board.
func (pos Position) InBounds() bool {
	return pos.Row >= 0 && pos.Row < BoardSize && pos.Col >= 0 && pos.Col < BoardSize
}

// Cell holds a single board square. Owner is None iff Piece is Empty.
// HasBeenUsed is set once a capture battle resolved on the cell and never
// clears; a used cell admits no further battles.
type Cell struct {
	Piece       Piece  `json:"piece"`
	Owner       Player `json:"owner"`
	HasBeenUsed bool   `json:"hasBeenUsed"`
}

type Board [BoardSize][BoardSize]Cell

// NewBoard returns a board of empty, unowned cells.
func NewBoard() Board {
	var b Board
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			b[r][c] = Cell{Piece: Empty, Owner: None}
		}
	}
	return b
}

// Inventory maps a piece type to its remaining count for one player.
type Inventory map[Piece]int

// NewInventory returns the initial per-player piece counts.
func NewInventory() Inventory {
	return Inventory{
		Rock:     7,
		Paper:    7,
		Scissors: 7,
		Special:  1,
	}
}

// Depleted reports whether every piece count is zero.
func (inv Inventory) Depleted() bool {
	for _, n := range inv {
		if n > 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the inventory.
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for p, n := range inv {
		out[p] = n
	}
	return out
}
