// Package strategy implements the position state machine: per-sector entry,
// hold, rotation and exit decisions driven by parent trend state and child
// scores, under account-level position limits.
package strategy

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"sectorbot/internal/model"
)

// Limits bound how many positions the machine may hold.
type Limits struct {
	MaxTotal     int `json:"max_total"`
	MaxPerSector int `json:"max_per_sector"`
}

// LimitsFor maps an account size class to its position limits.
func LimitsFor(accountSize string) (Limits, error) {
	switch accountSize {
	case "small", "":
		return Limits{MaxTotal: 10, MaxPerSector: 2}, nil
	case "large":
		return Limits{MaxTotal: 20, MaxPerSector: 5}, nil
	default:
		return Limits{}, fmt.Errorf("%w: unknown account size %q", model.ErrInvalidConfiguration, accountSize)
	}
}

// Config parameterizes a Machine.
type Config struct {
	Limits         Limits
	EntryThreshold int     // minimum composite score for entry and replacement
	RotationRSI    float64 // RSI(14) floor below which a held position rotates
	Log            zerolog.Logger
}

// ChildEval is one instrument's evaluation for one period. Score and Trend
// are nil when that instrument had a data gap this period.
type ChildEval struct {
	Ticker string
	Sector string
	Price  float64 // latest close
	Score  *model.ScoreBreakdown
	Trend  *model.TrendState
}

// StepInput is everything the machine needs for one period's decisions.
// Mode must already be resolved; auto is rejected.
type StepInput struct {
	AsOf     time.Time
	Mode     model.Mode
	Regime   model.Regime
	Parents  map[string]*model.TrendState // keyed by sector parent symbol
	Children []ChildEval
	Skipped  int // instrument-periods dropped upstream for data gaps
}

// Machine is the position state machine. Step is a pure evaluation of the
// current holdings; Commit applies a snapshot's signals at fill prices. One
// machine owns its portfolios for the life of a run and is not safe for
// concurrent use.
type Machine struct {
	cfg        Config
	portfolios map[string]*model.SectorPortfolio
	log        zerolog.Logger
}

// NewMachine validates the configuration and returns an empty machine.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.EntryThreshold == 0 {
		cfg.EntryThreshold = 9
	}
	if cfg.RotationRSI == 0 {
		cfg.RotationRSI = 40
	}
	if cfg.Limits.MaxTotal <= 0 || cfg.Limits.MaxPerSector <= 0 {
		return nil, fmt.Errorf("%w: non-positive position limits %+v", model.ErrInvalidConfiguration, cfg.Limits)
	}
	if cfg.EntryThreshold < 1 || cfg.EntryThreshold > 10 {
		return nil, fmt.Errorf("%w: entry threshold %d outside [1,10]", model.ErrInvalidConfiguration, cfg.EntryThreshold)
	}
	return &Machine{
		cfg:        cfg,
		portfolios: make(map[string]*model.SectorPortfolio),
		log:        cfg.Log,
	}, nil
}

// Positions returns all held positions, ordered by sector then ticker.
func (m *Machine) Positions() []model.Position {
	var out []model.Position
	for _, p := range m.portfolios {
		for _, pos := range p.Positions {
			out = append(out, *pos)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sector != out[j].Sector {
			return out[i].Sector < out[j].Sector
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

// Restore replaces all holdings, used when resuming a live session from a
// persisted state file.
func (m *Machine) Restore(positions []model.Position) {
	m.portfolios = make(map[string]*model.SectorPortfolio)
	for i := range positions {
		pos := positions[i]
		p, ok := m.portfolios[pos.Sector]
		if !ok {
			p = model.NewSectorPortfolio(pos.Sector)
			m.portfolios[pos.Sector] = p
		}
		p.Positions[pos.Ticker] = &pos
	}
}

func (m *Machine) totalHeld() int {
	n := 0
	for _, p := range m.portfolios {
		n += p.OccupiedSlots()
	}
	return n
}

// Step evaluates one period and returns the signal snapshot without touching
// holdings. Evaluation order is fixed (sectors sorted, then tickers sorted)
// so identical inputs always produce identical signals.
func (m *Machine) Step(in StepInput) (*model.SignalSnapshot, error) {
	if in.Mode == model.ModeAuto {
		return nil, fmt.Errorf("%w: mode auto must be resolved before stepping", model.ErrInvalidConfiguration)
	}
	switch in.Mode {
	case model.ModeRotation, model.ModeParentBased, model.ModeWeightedRotation:
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", model.ErrInvalidConfiguration, in.Mode)
	}

	snap := &model.SignalSnapshot{
		AsOf:      in.AsOf,
		Mode:      string(in.Mode),
		Regime:    string(in.Regime),
		Parents:   in.Parents,
		Positions: m.Positions(),
		Skipped:   in.Skipped,
	}

	evalByTicker := make(map[string]ChildEval, len(in.Children))
	bySector := make(map[string][]ChildEval)
	for _, c := range in.Children {
		evalByTicker[c.Ticker] = c
		bySector[c.Sector] = append(bySector[c.Sector], c)
	}

	exiting := make(map[string]bool)  // tickers leaving this period
	entering := make(map[string]bool) // tickers claimed by rotation or entry
	heldTotal := m.totalHeld()

	// Phase 1: parent flips bearish close the whole sector. A missing
	// parent evaluation is a data gap; the sector is left untouched.
	for _, sector := range m.sortedSectors(in.Parents) {
		parent, ok := in.Parents[sector]
		if !ok || parent == nil {
			continue
		}
		if parent.IsBullish() {
			continue
		}
		port := m.portfolios[sector]
		if port == nil {
			continue
		}
		for _, ticker := range sortedTickers(port) {
			pos := port.Positions[ticker]
			snap.Exits = append(snap.Exits, model.ExitSignal{
				Ticker: ticker,
				Sector: sector,
				Weight: pos.Weight,
				Reason: "parent trend bearish",
			})
			exiting[ticker] = true
			heldTotal--
		}
	}

	// Phase 2: per-position rotation triggers. Parent-based mode never
	// exits on individual weakness.
	if in.Mode == model.ModeRotation || in.Mode == model.ModeWeightedRotation {
		for _, sector := range m.sortedSectors(in.Parents) {
			parent := in.Parents[sector]
			if parent == nil || !parent.IsBullish() {
				continue
			}
			port := m.portfolios[sector]
			if port == nil {
				continue
			}
			for _, ticker := range sortedTickers(port) {
				if exiting[ticker] {
					continue
				}
				eval, ok := evalByTicker[ticker]
				if !ok || eval.Score == nil {
					continue // data gap, keep holding
				}
				reason := rotationTrigger(eval, m.cfg.RotationRSI)
				if reason == "" {
					continue
				}
				pos := port.Positions[ticker]
				repl, found := bestReplacement(bySector[sector], port, entering, m.cfg.EntryThreshold)
				if !found {
					snap.Exits = append(snap.Exits, model.ExitSignal{
						Ticker: ticker,
						Sector: sector,
						Weight: pos.Weight,
						Reason: reason,
					})
					exiting[ticker] = true
					heldTotal--
					continue
				}
				snap.Rotations = append(snap.Rotations, model.RotationSignal{
					Sector:     sector,
					ExitTicker: ticker,
					ExitReason: reason,
					Ticker:     repl.Ticker,
					Score:      repl.Score.Composite,
					RSI:        repl.Score.RSI14,
					Weight:     entryWeight(repl.Score.Composite),
				})
				exiting[ticker] = true
				entering[repl.Ticker] = true
			}
		}
	}

	// Phase 3: entries into bullish sectors, best momentum first.
	slotWeights := sectorWeights(in.Mode, in.Parents)
	for _, sector := range m.sortedSectors(in.Parents) {
		parent := in.Parents[sector]
		if parent == nil || !parent.IsBullish() {
			continue
		}
		allowance := m.sectorAllowance(slotWeights[sector])
		occupied := 0
		if port := m.portfolios[sector]; port != nil {
			for ticker := range port.Positions {
				if !exiting[ticker] {
					occupied++
				}
			}
		}
		occupied += rotationsInto(snap.Rotations, sector)

		candidates := entryCandidates(bySector[sector], m.portfolios[sector], exiting, entering, m.cfg.EntryThreshold)
		for _, c := range candidates {
			if occupied >= allowance || heldTotal >= m.cfg.Limits.MaxTotal {
				break
			}
			snap.Entries = append(snap.Entries, model.EntrySignal{
				Ticker: c.Ticker,
				Sector: sector,
				Score:  c.Score.Composite,
				RSI:    c.Score.RSI14,
				Weight: entryWeight(c.Score.Composite),
				Reason: "score above entry threshold",
			})
			entering[c.Ticker] = true
			occupied++
			heldTotal++
		}
	}

	// Holds: everything still owned after this period's signals.
	for _, pos := range snap.Positions {
		if !exiting[pos.Ticker] {
			snap.Holds = append(snap.Holds, pos.Ticker)
		}
	}
	sort.Strings(snap.Holds)

	return snap, nil
}

// Commit applies a snapshot's signals at the given fill prices and returns
// the trade records plus the positions that were closed. A signal whose
// ticker has no fill price is skipped for the period. Exits are applied
// before entries so rotation never transiently exceeds a sector limit.
func (m *Machine) Commit(snap *model.SignalSnapshot, fills map[string]float64, date time.Time) ([]model.TradeRecord, []model.Position, error) {
	var trades []model.TradeRecord
	var closed []model.Position

	for _, ex := range snap.Exits {
		price, ok := fills[ex.Ticker]
		if !ok {
			continue
		}
		pos, ok := m.remove(ex.Sector, ex.Ticker)
		if !ok {
			continue
		}
		closed = append(closed, *pos)
		trades = append(trades, model.TradeRecord{
			Date:   date,
			Action: model.ActionExit,
			Sector: ex.Sector,
			Ticker: ex.Ticker,
			Price:  price,
			Weight: pos.Weight,
			Reason: ex.Reason,
		})
	}

	for _, rot := range snap.Rotations {
		exitPrice, ok := fills[rot.ExitTicker]
		if !ok {
			continue // cannot price the exit, keep holding
		}
		pos, ok := m.remove(rot.Sector, rot.ExitTicker)
		if !ok {
			continue
		}
		closed = append(closed, *pos)
		entryPrice, haveEntry := fills[rot.Ticker]
		if !haveEntry {
			// Replacement has no fill this period; record a plain exit.
			trades = append(trades, model.TradeRecord{
				Date:   date,
				Action: model.ActionExit,
				Sector: rot.Sector,
				Ticker: rot.ExitTicker,
				Price:  exitPrice,
				Weight: pos.Weight,
				Reason: rot.ExitReason,
			})
			continue
		}
		if err := m.add(&model.Position{
			Sector:     rot.Sector,
			Ticker:     rot.Ticker,
			EntryDate:  date,
			EntryPrice: entryPrice,
			EntryScore: rot.Score,
			Weight:     rot.Weight,
		}); err != nil {
			return nil, nil, err
		}
		trades = append(trades, model.TradeRecord{
			Date:     date,
			Action:   model.ActionRotate,
			Sector:   rot.Sector,
			Ticker:   rot.ExitTicker,
			TickerIn: rot.Ticker,
			Price:    exitPrice,
			PriceIn:  entryPrice,
			Weight:   rot.Weight,
			Reason:   rot.ExitReason,
		})
	}

	for _, en := range snap.Entries {
		price, ok := fills[en.Ticker]
		if !ok {
			continue
		}
		// An exit skipped for lack of a fill keeps its slot, so the capacity
		// the signal phase counted on may be gone. The entry waits for the
		// next period rather than failing the run.
		if m.totalHeld() >= m.cfg.Limits.MaxTotal || m.sectorHeld(en.Sector) >= m.cfg.Limits.MaxPerSector {
			m.log.Debug().
				Str("ticker", en.Ticker).
				Str("sector", en.Sector).
				Msg("entry skipped, no free slot at fill time")
			continue
		}
		if err := m.add(&model.Position{
			Sector:     en.Sector,
			Ticker:     en.Ticker,
			EntryDate:  date,
			EntryPrice: price,
			EntryScore: en.Score,
			Weight:     en.Weight,
		}); err != nil {
			return nil, nil, err
		}
		trades = append(trades, model.TradeRecord{
			Date:   date,
			Action: model.ActionEnter,
			Sector: en.Sector,
			Ticker: en.Ticker,
			Price:  price,
			Weight: en.Weight,
		})
	}

	if n := m.totalHeld(); n > m.cfg.Limits.MaxTotal {
		return nil, nil, fmt.Errorf("%w: %d positions held, limit %d", model.ErrStateInvariant, n, m.cfg.Limits.MaxTotal)
	}

	for _, t := range trades {
		m.log.Debug().
			Time("date", t.Date).
			Str("action", string(t.Action)).
			Str("sector", t.Sector).
			Str("ticker", t.Ticker).
			Float64("price", t.Price).
			Msg("trade committed")
	}
	return trades, closed, nil
}

func (m *Machine) add(pos *model.Position) error {
	port, ok := m.portfolios[pos.Sector]
	if !ok {
		port = model.NewSectorPortfolio(pos.Sector)
		m.portfolios[pos.Sector] = port
	}
	return port.Add(pos, m.cfg.Limits.MaxPerSector)
}

func (m *Machine) sectorHeld(sector string) int {
	if port, ok := m.portfolios[sector]; ok {
		return len(port.Positions)
	}
	return 0
}

func (m *Machine) remove(sector, ticker string) (*model.Position, bool) {
	port, ok := m.portfolios[sector]
	if !ok {
		return nil, false
	}
	return port.Remove(ticker)
}

// sortedSectors returns the union of configured parents and sectors with
// holdings, sorted.
func (m *Machine) sortedSectors(parents map[string]*model.TrendState) []string {
	seen := make(map[string]bool)
	for s := range parents {
		seen[s] = true
	}
	for s := range m.portfolios {
		seen[s] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedTickers(port *model.SectorPortfolio) []string {
	out := make([]string, 0, len(port.Positions))
	for t := range port.Positions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// rotationTrigger returns a non-empty reason when a held position should
// rotate out.
func rotationTrigger(eval ChildEval, rsiFloor float64) string {
	bearish := false
	if eval.Trend != nil {
		bearish = !eval.Trend.IsBullish()
	} else {
		bearish = !eval.Score.TrendBullish
	}
	if bearish {
		return "child trend bearish"
	}
	if eval.Score.RSI14 < rsiFloor {
		return fmt.Sprintf("RSI %.1f below rotation floor %.0f", eval.Score.RSI14, rsiFloor)
	}
	return ""
}

// bestReplacement picks the strongest unheld qualifying candidate in a
// sector, ranked by score then RSI.
func bestReplacement(sectorEvals []ChildEval, port *model.SectorPortfolio, entering map[string]bool, threshold int) (ChildEval, bool) {
	var best ChildEval
	found := false
	for _, c := range sectorEvals {
		if c.Score == nil || c.Score.Composite < threshold {
			continue
		}
		if entering[c.Ticker] || (port != nil && port.Holds(c.Ticker)) {
			continue
		}
		if !found || betterReplacement(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func betterReplacement(a, b ChildEval) bool {
	if a.Score.Composite != b.Score.Composite {
		return a.Score.Composite > b.Score.Composite
	}
	if a.Score.RSI14 != b.Score.RSI14 {
		return a.Score.RSI14 > b.Score.RSI14
	}
	return a.Ticker < b.Ticker
}

// entryCandidates returns qualifying unheld candidates ranked by momentum,
// strongest first.
func entryCandidates(sectorEvals []ChildEval, port *model.SectorPortfolio, exiting, entering map[string]bool, threshold int) []ChildEval {
	var out []ChildEval
	for _, c := range sectorEvals {
		if c.Score == nil || c.Score.Composite < threshold || c.Score.Broken {
			continue
		}
		if entering[c.Ticker] {
			continue
		}
		if port != nil && port.Holds(c.Ticker) && !exiting[c.Ticker] {
			continue // no re-entry while held
		}
		if exiting[c.Ticker] {
			continue // just left this period, do not re-enter the same step
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := momentum(out[i]), momentum(out[j])
		if mi != mj {
			return mi > mj
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

func momentum(c ChildEval) float64 {
	return float64(c.Score.Composite)*10 + c.Score.RSI14
}

func entryWeight(score int) float64 {
	if score >= 10 {
		return 2.0
	}
	return 1.0
}

// sectorWeights ranks bullish parents by strength and assigns slot weights.
// Only weighted rotation differentiates; other modes weight every sector 1.
func sectorWeights(mode model.Mode, parents map[string]*model.TrendState) map[string]float64 {
	out := make(map[string]float64, len(parents))
	for s := range parents {
		out[s] = 1.0
	}
	if mode != model.ModeWeightedRotation {
		return out
	}

	type ranked struct {
		sector   string
		strength float64
	}
	var rs []ranked
	for s, p := range parents {
		if p != nil {
			rs = append(rs, ranked{s, p.StrengthScore})
		}
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].strength != rs[j].strength {
			return rs[i].strength > rs[j].strength
		}
		return rs[i].sector < rs[j].sector
	})
	for i, r := range rs {
		switch {
		case i < 3:
			out[r.sector] = 2.0
		case i < 8:
			out[r.sector] = 1.0
		default:
			out[r.sector] = 0.5
		}
	}
	return out
}

// sectorAllowance converts a sector weight into a slot count, never
// exceeding the per-sector limit.
func (m *Machine) sectorAllowance(weight float64) int {
	if weight == 0 {
		weight = 1.0
	}
	slots := int(math.Floor(float64(m.cfg.Limits.MaxPerSector)*weight)) + 1
	if slots > m.cfg.Limits.MaxPerSector {
		slots = m.cfg.Limits.MaxPerSector
	}
	return slots
}

func rotationsInto(rotations []model.RotationSignal, sector string) int {
	n := 0
	for _, r := range rotations {
		if r.Sector == sector {
			n++
		}
	}
	return n
}
