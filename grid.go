package main

import (
	"sort"
	"time"
)

const (
	sizeClassSmall  = "small"
	sizeClassMedium = "medium"
	sizeClassLarge  = "large"
)

func gridDimensions(sizeClass string) (cols, rows int) {
	switch sizeClass {
	case sizeClassSmall:
		return 6, 4
	case sizeClassMedium:
		return 8, 4
	default:
		return 10, 6
	}
}

// resizeGridLocked reallocates the cell array for a new size class and copies
// buildings over by linear index. Cells beyond the new bound are dropped.
func resizeGridLocked(store *Store, s *Session, sizeClass string) {
	cols, rows := gridDimensions(sizeClass)
	if cols == s.GridCols && rows == s.GridRows {
		return
	}
	next := make([]*PlacedBuilding, cols*rows)
	copy(next, s.Grid[:minInt(len(s.Grid), len(next))])
	s.GridCols = cols
	s.GridRows = rows
	s.Grid = next
	refreshZonesLocked(store, s, false)
	s.Efficiency = calculateEfficiency(s)
}

// adjacentCells returns the up/down/left/right neighbors of a row-major
// linear index. No wraparound.
func adjacentCells(s *Session, cellIndex int) []int {
	row := cellIndex / s.GridCols
	col := cellIndex % s.GridCols
	var out []int
	if row > 0 {
		out = append(out, cellIndex-s.GridCols)
	}
	if row < s.GridRows-1 {
		out = append(out, cellIndex+s.GridCols)
	}
	if col > 0 {
		out = append(out, cellIndex-1)
	}
	if col < s.GridCols-1 {
		out = append(out, cellIndex+1)
	}
	return out
}

// calculateAdjacency accumulates the building's rule delta once per adjacent
// matching neighbor. Messages are deduplicated.
func calculateAdjacency(s *Session, cellIndex int, buildingType string) (StatDelta, []string) {
	rule, ok := adjacencyRules[buildingType]
	if !ok {
		return StatDelta{}, nil
	}
	var total StatDelta
	seen := map[string]bool{}
	var messages []string
	for _, adj := range adjacentCells(s, cellIndex) {
		neighbor := s.Grid[adj]
		if neighbor == nil || !containsString(rule.Near, neighbor.Type) {
			continue
		}
		total.Happiness += rule.Delta.Happiness
		total.CityFunds += rule.Delta.CityFunds
		total.SpecialInterest += rule.Delta.SpecialInterest
		if !seen[rule.Message] {
			seen[rule.Message] = true
			messages = append(messages, rule.Message)
		}
	}
	return total, messages
}

func placeBuildingLocked(store *Store, s *Session, cellIndex int, buildingID string) (string, bool) {
	bt, ok := buildingCatalog[buildingID]
	if !ok {
		return "unknown building type", false
	}
	if cellIndex < 0 || cellIndex >= len(s.Grid) {
		return "invalid cell index", false
	}
	if !containsString(s.UnlockedBuildings, buildingID) {
		return "that building is still locked", false
	}
	if s.Grid[cellIndex] != nil {
		return "this spot is already occupied", false
	}
	if s.CityFunds < bt.Cost {
		return "not enough funds", false
	}

	// Snapshot before any mutation so undo restores the true pre-place state.
	prev := statSnapshot{Happiness: s.Happiness, CityFunds: s.CityFunds, SpecialInterest: s.SpecialInterest}

	s.CityFunds -= bt.Cost
	applyEffectsLocked(s, bt.Delta)

	placed := &PlacedBuilding{
		Type:     bt.ID,
		Name:     bt.Name,
		Icon:     bt.Icon,
		Cost:     bt.Cost,
		Effect:   bt.Effect,
		PlacedAt: time.Now().UTC(),
	}
	s.Grid[cellIndex] = placed

	s.History = append(s.History, UndoRecord{CellIndex: cellIndex, Building: *placed, Prev: prev})
	if len(s.History) > maxUndoHistory {
		s.History = s.History[len(s.History)-maxUndoHistory:]
	}

	delta, messages := calculateAdjacency(s, cellIndex, bt.ID)
	applyEffectsLocked(s, delta)
	for _, msg := range messages {
		addEventLocked(store, s, "adjacency", msg)
	}

	refreshZonesLocked(store, s, true)
	s.Efficiency = calculateEfficiency(s)
	addEventLocked(store, s, "building_placed", bt.Name+" placed")
	checkAchievementsLocked(store, s)

	if s.AwaitingPlacement && s.PendingBuilding == bt.ID {
		completeMandatoryPlacementLocked(store, s)
	}
	return "", true
}

// relocateBuildingLocked reverses adjacency against the current neighbors at
// the source, which can diverge from the placement-time neighborhood. That
// approximation is intentional.
func relocateBuildingLocked(store *Store, s *Session, sourceIndex, destIndex int) (string, bool) {
	if sourceIndex < 0 || sourceIndex >= len(s.Grid) || destIndex < 0 || destIndex >= len(s.Grid) {
		return "invalid cell index", false
	}
	building := s.Grid[sourceIndex]
	if building == nil {
		return "nothing to move there", false
	}
	if sourceIndex == destIndex {
		return "building is already there", false
	}
	if s.Grid[destIndex] != nil {
		return "cannot move to an occupied spot", false
	}
	mode := difficultyModes[s.Difficulty]
	if s.RelocationsUsed >= mode.MaxRelocation {
		return "relocation limit reached", false
	}
	if s.CityFunds < relocationFee {
		return "not enough funds to relocate", false
	}

	oldDelta, _ := calculateAdjacency(s, sourceIndex, building.Type)
	applyEffectsLocked(s, negateDelta(oldDelta))
	s.Grid[sourceIndex] = nil

	s.CityFunds -= relocationFee
	s.RelocationsUsed++

	building.PlacedAt = time.Now().UTC()
	s.Grid[destIndex] = building

	newDelta, messages := calculateAdjacency(s, destIndex, building.Type)
	applyEffectsLocked(s, newDelta)
	for _, msg := range messages {
		addEventLocked(store, s, "adjacency", msg)
	}

	refreshZonesLocked(store, s, false)
	s.Efficiency = calculateEfficiency(s)
	addEventLocked(store, s, "building_relocated", building.Name+" relocated")
	checkAchievementsLocked(store, s)
	return "", true
}

func sellBuildingLocked(store *Store, s *Session, cellIndex int) (string, bool) {
	if cellIndex < 0 || cellIndex >= len(s.Grid) {
		return "invalid cell index", false
	}
	building := s.Grid[cellIndex]
	if building == nil {
		return "nothing to sell there", false
	}

	bt := buildingCatalog[building.Type]
	applyEffectsLocked(s, negateDelta(bt.Delta))

	adjDelta, _ := calculateAdjacency(s, cellIndex, building.Type)
	applyEffectsLocked(s, negateDelta(adjDelta))

	s.Grid[cellIndex] = nil
	refund := building.Cost / 2
	s.CityFunds = clampInt(s.CityFunds+refund, 0, 100)

	refreshZonesLocked(store, s, false)
	s.Efficiency = calculateEfficiency(s)
	addEventLocked(store, s, "building_sold", building.Name+" sold")
	checkAchievementsLocked(store, s)
	return "", true
}

func undoPlacementLocked(store *Store, s *Session) (string, bool) {
	if len(s.History) == 0 || s.UndoCount <= 0 {
		return "no more undos available", false
	}
	last := s.History[len(s.History)-1]
	s.History = s.History[:len(s.History)-1]

	s.Grid[last.CellIndex] = nil
	s.Happiness = last.Prev.Happiness
	s.CityFunds = last.Prev.CityFunds
	s.SpecialInterest = last.Prev.SpecialInterest
	s.UndoCount--

	refreshZonesLocked(store, s, false)
	s.Efficiency = calculateEfficiency(s)
	addEventLocked(store, s, "undo", "Undid "+last.Building.Name+" placement")
	return "", true
}

func countBuildingsByType(s *Session) map[string]int {
	counts := map[string]int{}
	for _, cell := range s.Grid {
		if cell != nil {
			counts[cell.Type]++
		}
	}
	return counts
}

func detectZones(s *Session) []Zone {
	counts := countBuildingsByType(s)
	var zones []Zone
	if counts["house"] >= 3 {
		zones = append(zones, Zone{Type: "residential", Name: "Neighborhood", Icon: "🏘️", Count: counts["house"], Bonus: StatDelta{Happiness: 5}})
	}
	if counts["shop"] >= 3 {
		zones = append(zones, Zone{Type: "commercial", Name: "Shopping District", Icon: "🛍️", Count: counts["shop"], Bonus: StatDelta{CityFunds: 8}})
	}
	if counts["factory"] >= 3 {
		zones = append(zones, Zone{Type: "industrial", Name: "Industrial Park", Icon: "🏭", Count: counts["factory"], Bonus: StatDelta{CityFunds: 12, Happiness: -3}})
	}

	total := 0
	balanced := len(counts) >= 4
	for _, n := range counts {
		total += n
		if n < 2 {
			balanced = false
		}
	}
	if balanced && total >= 10 {
		zones = append(zones, Zone{Type: "mixed", Name: "Vibrant Community", Icon: "🌆", Count: total, Bonus: StatDelta{Happiness: 3, CityFunds: 3, SpecialInterest: 3}})
	}
	return zones
}

// refreshZonesLocked recomputes zones and, when applyNew is set, applies the
// bonus for zones newly formed since the last detection. A zone that drops
// below threshold and later re-forms earns its bonus again.
func refreshZonesLocked(store *Store, s *Session, applyNew bool) {
	detected := detectZones(s)
	if applyNew {
		existing := map[string]bool{}
		for _, z := range s.DetectedZones {
			existing[z.Type] = true
		}
		for _, z := range detected {
			if existing[z.Type] {
				continue
			}
			applyEffectsLocked(s, z.Bonus)
			addEventLocked(store, s, "zone_formed", "Zone formed: "+z.Name)
		}
	}
	s.DetectedZones = detected
}

// calculateEfficiency scores the current layout 0-100, recomputed fresh.
func calculateEfficiency(s *Session) int {
	total := 0
	for _, cell := range s.Grid {
		if cell != nil {
			total++
		}
	}
	if total == 0 {
		return 0
	}

	score := len(detectZones(s)) * 10

	counts := countBuildingsByType(s)
	if len(counts) >= 3 {
		values := make([]float64, 0, len(counts))
		sum := 0.0
		for _, n := range counts {
			values = append(values, float64(n))
			sum += float64(n)
		}
		avg := sum / float64(len(values))
		variance := 0.0
		for _, v := range values {
			variance += (v - avg) * (v - avg)
		}
		variance /= float64(len(values))
		if variance < 4 {
			score += 20
		} else if variance < 9 {
			score += 10
		}
	}

	isolated := 0
	for i, cell := range s.Grid {
		if cell == nil {
			continue
		}
		hasNeighbor := false
		for _, adj := range adjacentCells(s, i) {
			if s.Grid[adj] != nil {
				hasNeighbor = true
				break
			}
		}
		if !hasNeighbor {
			isolated++
		}
	}
	if isolated == 0 {
		score += 15
	} else if isolated <= 2 {
		score += 8
	}

	score += minInt(counts["park"]*5, 25)

	return minInt(score, 100)
}

func sortedZoneNames(zones []Zone) []string {
	names := make([]string, 0, len(zones))
	for _, z := range zones {
		names = append(names, z.Name)
	}
	sort.Strings(names)
	return names
}
