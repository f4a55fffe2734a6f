package game

// beats reports whether attacker defeats defender under rock-paper-scissors.
// Identical pieces and every other pairing resolve as attacker-loses.
func beats(attacker, defender Piece) bool {
	switch {
	case attacker == Rock && defender == Scissors:
		return true
	case attacker == Scissors && defender == Paper:
		return true
	case attacker == Paper && defender == Rock:
		return true
	}
	return false
}

// IsValidMove reports whether player may place piece at pos. It never
// panics; out-of-range input simply yields false.
func IsValidMove(b *Board, pos Position, piece Piece, player Player) bool {
	if !pos.InBounds() {
		return false
	}
	if piece == Empty || piece == "" {
		return false
	}
	target := b[pos.Row][pos.Col]
	if target.HasBeenUsed {
		return false
	}
	if target.Piece == Empty {
		return true
	}
	// Occupied cell: only a combat piece can attack.
	if piece == Special {
		return false
	}
	if target.Owner == player {
		return false
	}
	if target.Piece == Special {
		return false
	}
	return beats(piece, target.Piece)
}

// ResolveMove applies piece at pos for player and returns the new board and
// whether a capture battle occurred. A capture locks the cell for good.
// Callers are expected to have checked IsValidMove first.
func ResolveMove(b Board, pos Position, piece Piece, player Player) (Board, bool) {
	if !pos.InBounds() {
		return b, false
	}
	target := b[pos.Row][pos.Col]
	if target.Piece == Empty {
		b[pos.Row][pos.Col] = Cell{Piece: piece, Owner: player, HasBeenUsed: false}
		return b, false
	}
	b[pos.Row][pos.Col] = Cell{Piece: piece, Owner: player, HasBeenUsed: true}
	return b, true
}

// FindWinningLine scans for WinLength consecutive cells owned by player
// with a non-empty piece. Scan order: rows top to bottom left to right,
// then columns, then down-right diagonals, then down-left diagonals. The
// first run found wins; nil if none.
func FindWinningLine(b *Board, player Player) []Position {
	owns := func(r, c int) bool {
		cell := b[r][c]
		return cell.Owner == player && cell.Piece != Empty
	}

	for r := 0; r < BoardSize; r++ {
		for c := 0; c <= BoardSize-WinLength; c++ {
			if line := runFrom(owns, r, c, 0, 1); line != nil {
				return line
			}
		}
	}
	for r := 0; r <= BoardSize-WinLength; r++ {
		for c := 0; c < BoardSize; c++ {
			if line := runFrom(owns, r, c, 1, 0); line != nil {
				return line
			}
		}
	}
	for r := 0; r <= BoardSize-WinLength; r++ {
		for c := 0; c <= BoardSize-WinLength; c++ {
			if line := runFrom(owns, r, c, 1, 1); line != nil {
				return line
			}
		}
	}
	for r := 0; r <= BoardSize-WinLength; r++ {
		for c := WinLength - 1; c < BoardSize; c++ {
			if line := runFrom(owns, r, c, 1, -1); line != nil {
				return line
			}
		}
	}
	return nil
}

func runFrom(owns func(r, c int) bool, r, c, dr, dc int) []Position {
	line := make([]Position, 0, WinLength)
	for i := 0; i < WinLength; i++ {
		rr, cc := r+i*dr, c+i*dc
		if !owns(rr, cc) {
			return nil
		}
		line = append(line, Position{Row: rr, Col: cc})
	}
	return line
}

// IsDraw reports a drawn position: the board has no empty cell left, or
// both players have run out of pieces entirely.
func IsDraw(b *Board, inv1, inv2 Inventory) bool {
	full := true
	for r := 0; r < BoardSize && full; r++ {
		for c := 0; c < BoardSize; c++ {
			if b[r][c].Piece == Empty {
				full = false
				break
			}
		}
	}
	if full {
		return true
	}
	return inv1.Depleted() && inv2.Depleted()
}
