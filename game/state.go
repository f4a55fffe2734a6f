package game

import "errors"

var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrInvalidMove    = errors.New("invalid move")
	ErrPieceExhausted = errors.New("no pieces of that type left")
	ErrGameOver       = errors.New("game is not in progress")
)

// Move records an applied move. CellLocked mirrors whether the target cell
// became permanently battle-locked as a result.
type Move struct {
	Player     Player   `json:"player"`
	Piece      Piece    `json:"piece"`
	Position   Position `json:"position"`
	Captured   bool     `json:"captured"`
	CellLocked bool     `json:"cellLocked"`
}

// GameState is the authoritative snapshot broadcast verbatim to clients.
type GameState struct {
	Board            Board      `json:"board"`
	Player1Inventory Inventory  `json:"player1Inventory"`
	Player2Inventory Inventory  `json:"player2Inventory"`
	CurrentPlayer    Player     `json:"currentPlayer"`
	GamePhase        Phase      `json:"gamePhase"`
	GameResult       Result     `json:"gameResult"`
	LastMove         *Move      `json:"lastMove"`
	WinningLine      []Position `json:"winningLine"`
}

// NewGameState builds a fresh state in the READY phase: empty board, full
// inventories, player 1 to move once the game starts.
func NewGameState() *GameState {
	return &GameState{
		Board:            NewBoard(),
		Player1Inventory: NewInventory(),
		Player2Inventory: NewInventory(),
		CurrentPlayer:    Player1,
		GamePhase:        PhaseReady,
		GameResult:       ResultOngoing,
	}
}

// Start moves a READY state into active play.
func (gs *GameState) Start() {
	gs.GamePhase = PhaseSelectingCell
}

// InventoryOf returns the given player's inventory.
func (gs *GameState) InventoryOf(p Player) Inventory {
	if p == Player1 {
		return gs.Player1Inventory
	}
	return gs.Player2Inventory
}

// ApplyMove validates and applies a move for player. Every check runs
// before any mutation, so a rejected move leaves the state untouched.
// On success it records LastMove, resolves win/draw, and toggles the turn
// if the game continues.
func (gs *GameState) ApplyMove(player Player, pos Position, piece Piece) (*Move, error) {
	if gs.GamePhase != PhaseSelectingCell {
		return nil, ErrGameOver
	}
	if gs.CurrentPlayer != player {
		return nil, ErrNotYourTurn
	}
	if !IsValidMove(&gs.Board, pos, piece, player) {
		return nil, ErrInvalidMove
	}
	if gs.InventoryOf(player)[piece] <= 0 {
		return nil, ErrPieceExhausted
	}

	board, captured := ResolveMove(gs.Board, pos, piece, player)
	gs.Board = board
	gs.InventoryOf(player)[piece]--

	mv := &Move{
		Player:     player,
		Piece:      piece,
		Position:   pos,
		Captured:   captured,
		CellLocked: captured,
	}
	gs.LastMove = mv

	if line := FindWinningLine(&gs.Board, player); line != nil {
		gs.GamePhase = PhaseGameOver
		gs.GameResult = WinResult(player)
		gs.WinningLine = line
	} else if IsDraw(&gs.Board, gs.Player1Inventory, gs.Player2Inventory) {
		gs.GamePhase = PhaseGameOver
		gs.GameResult = ResultDraw
	} else {
		gs.CurrentPlayer = gs.CurrentPlayer.Opponent()
	}
	return mv, nil
}

// Forfeit ends the game in favor of the remaining player.
func (gs *GameState) Forfeit(leaver Player) {
	gs.GamePhase = PhaseGameOver
	gs.GameResult = WinResult(leaver.Opponent())
}

// Clone returns a deep copy of the state. The board is an array and copies
// by value; inventories and the winning line need explicit copies.
func (gs *GameState) Clone() *GameState {
	out := *gs
	out.Player1Inventory = gs.Player1Inventory.Clone()
	out.Player2Inventory = gs.Player2Inventory.Clone()
	if gs.LastMove != nil {
		mv := *gs.LastMove
		out.LastMove = &mv
	}
	if gs.WinningLine != nil {
		out.WinningLine = append([]Position(nil), gs.WinningLine...)
	}
	return &out
}
