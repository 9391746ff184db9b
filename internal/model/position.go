package model

import (
	"fmt"
	"time"
)

// Position is a single held stock within a sector. WeightMultiplier is locked
// at entry and never recomputed from later scores.
type Position struct {
	Sector     string    `json:"sector"` // parent instrument symbol
	Ticker     string    `json:"ticker"`
	EntryDate  time.Time `json:"entry_date"`
	EntryPrice float64   `json:"entry_price"`
	EntryScore int       `json:"entry_score"`
	Weight     float64   `json:"weight"` // 1.0 or 2.0, fixed at entry
}

// SectorPortfolio owns the positions of one sector. The position state
// machine is its only writer.
type SectorPortfolio struct {
	Sector    string               `json:"sector"`
	Positions map[string]*Position `json:"positions"` // keyed by ticker
}

// NewSectorPortfolio creates an empty portfolio for a sector.
func NewSectorPortfolio(sector string) *SectorPortfolio {
	return &SectorPortfolio{Sector: sector, Positions: make(map[string]*Position)}
}

// OccupiedSlots returns the number of held positions in the sector.
func (p *SectorPortfolio) OccupiedSlots() int { return len(p.Positions) }

// Holds reports whether the ticker is currently held.
func (p *SectorPortfolio) Holds(ticker string) bool {
	_, ok := p.Positions[ticker]
	return ok
}

// Add inserts a position, failing on duplicates or when maxPerSector would be
// exceeded. Both failures indicate a state machine defect.
func (p *SectorPortfolio) Add(pos *Position, maxPerSector int) error {
	if p.Holds(pos.Ticker) {
		return fmt.Errorf("%w: duplicate position %s in %s", ErrStateInvariant, pos.Ticker, p.Sector)
	}
	if len(p.Positions)+1 > maxPerSector {
		return fmt.Errorf("%w: sector %s would hold %d positions, limit %d",
			ErrStateInvariant, p.Sector, len(p.Positions)+1, maxPerSector)
	}
	p.Positions[pos.Ticker] = pos
	return nil
}

// Remove deletes a position by ticker and returns it.
func (p *SectorPortfolio) Remove(ticker string) (*Position, bool) {
	pos, ok := p.Positions[ticker]
	if ok {
		delete(p.Positions, ticker)
	}
	return pos, ok
}
