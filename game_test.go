package main

import (
	mathrand "math/rand"
	"testing"
	"time"
)

func newTestStore() *Store {
	return &Store{
		Sessions: map[string]*Session{},
		rng:      mathrand.New(mathrand.NewSource(1)),
	}
}

func newTestSession(t *testing.T, store *Store, difficulty string) *Session {
	t.Helper()
	s, reason := newSessionLocked(store, "Test Mayor", difficulty)
	if reason != "" {
		t.Fatalf("newSessionLocked(%q) failed: %s", difficulty, reason)
	}
	return s
}

func unlockAll(s *Session) {
	for id := range buildingCatalog {
		if !containsString(s.UnlockedBuildings, id) {
			s.UnlockedBuildings = append(s.UnlockedBuildings, id)
		}
	}
}

func TestNewSessionDefaults(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")

	if s.CurrentScene != sceneFirst {
		t.Fatalf("new session scene = %q, want %q", s.CurrentScene, sceneFirst)
	}
	if s.Happiness != 50 || s.SpecialInterest != 50 {
		t.Fatalf("new session stats = %d/%d, want 50/50", s.Happiness, s.SpecialInterest)
	}
	if s.CityFunds != 60 {
		t.Fatalf("normal starting funds = %d, want 60", s.CityFunds)
	}
	if s.UndoCount != 3 {
		t.Fatalf("normal undo count = %d, want 3", s.UndoCount)
	}
	if !s.TimerRunning || s.TimerDuration != 60 {
		t.Fatalf("timer running=%v duration=%d, want running at 60", s.TimerRunning, s.TimerDuration)
	}
	if len(s.Grid) != s.GridCols*s.GridRows {
		t.Fatalf("grid len %d, want %d", len(s.Grid), s.GridCols*s.GridRows)
	}
	if store.Sessions[s.ID] != s {
		t.Fatalf("session not registered in store")
	}
}

func TestNewSessionRejectsUnknownDifficulty(t *testing.T) {
	store := newTestStore()
	if s, reason := newSessionLocked(store, "x", "nightmare"); s != nil || reason == "" {
		t.Fatalf("expected unknown difficulty error, got s=%v reason=%q", s, reason)
	}
}

func TestMakeChoiceAcceptFactory(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.TimerRemaining = 50

	reason, ok := makeChoiceLocked(store, s, sceneFirst, 0, false)
	if !ok {
		t.Fatalf("makeChoice failed: %s", reason)
	}

	if s.Happiness != 60 || s.CityFunds != 80 || s.SpecialInterest != 65 {
		t.Fatalf("stats = %d/%d/%d, want 60/80/65", s.Happiness, s.CityFunds, s.SpecialInterest)
	}
	if s.PersonalProfit != 5 {
		t.Fatalf("profit = %d, want 5", s.PersonalProfit)
	}
	if s.TimeBonus != 100 {
		t.Fatalf("time bonus = %d, want 100 (50 remaining x2)", s.TimeBonus)
	}
	if s.TimeBankSeconds != 10 {
		t.Fatalf("time bank = %d, want 10 for a strongly positive choice", s.TimeBankSeconds)
	}
	if len(s.Decisions) != 1 || s.Decisions[0].TimeSpent != 10 {
		t.Fatalf("decisions = %+v, want one with timeSpent 10", s.Decisions)
	}
	if !containsString(s.UnlockedBuildings, "factory") || !containsString(s.UnlockedBuildings, "house") {
		t.Fatalf("unlocks = %v, want factory and house", s.UnlockedBuildings)
	}
	if !s.AwaitingPlacement || s.PendingBuilding != "factory" || s.PendingNext != "choice2A" {
		t.Fatalf("placement gate = %v/%q/%q", s.AwaitingPlacement, s.PendingBuilding, s.PendingNext)
	}
	if s.TimerRunning {
		t.Fatalf("timer should stop while placement is pending")
	}
	if s.CurrentScene != sceneFirst {
		t.Fatalf("scene should not advance until the mandatory building is placed")
	}
}

func TestMandatoryPlacementAdvancesScene(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.TimerRemaining = 50
	if reason, ok := makeChoiceLocked(store, s, sceneFirst, 0, false); !ok {
		t.Fatalf("makeChoice: %s", reason)
	}

	if reason, ok := placeBuildingLocked(store, s, 0, "factory"); !ok {
		t.Fatalf("placeBuilding: %s", reason)
	}
	if s.AwaitingPlacement || s.PendingBuilding != "" {
		t.Fatalf("placement gate should clear after the required building lands")
	}
	if s.CurrentScene != "choice2A" {
		t.Fatalf("scene = %q, want choice2A", s.CurrentScene)
	}
	// Banked time folds into the next countdown exactly once.
	if s.TimerDuration != 70 || s.TimeBankSeconds != 0 {
		t.Fatalf("next timer duration=%d bank=%d, want 70 and 0", s.TimerDuration, s.TimeBankSeconds)
	}
}

func TestMandatoryGateGrantsLockedBuilding(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")

	// Reject the factory, raise taxes, then fund job training: that branch
	// gates on an office even though no choice along it unlocks one.
	steps := []struct {
		scene string
		index int
	}{
		{sceneFirst, 1},
		{"choice2B", 0},
		{"choice3B1", 1},
	}
	for _, step := range steps {
		if reason, ok := makeChoiceLocked(store, s, step.scene, step.index, false); !ok {
			t.Fatalf("choice %s/%d: %s", step.scene, step.index, reason)
		}
	}

	if !s.AwaitingPlacement || s.PendingBuilding != "office" {
		t.Fatalf("gate = %v/%q, want pending office", s.AwaitingPlacement, s.PendingBuilding)
	}
	if !containsString(s.UnlockedBuildings, "office") {
		t.Fatalf("unlocked = %v, the gate must grant the office", s.UnlockedBuildings)
	}
	if reason, ok := placeBuildingLocked(store, s, 0, "office"); !ok {
		t.Fatalf("placing the required office: %s", reason)
	}
	if s.AwaitingPlacement || s.CurrentScene != "choice4B12" {
		t.Fatalf("after placement scene = %q awaiting = %v", s.CurrentScene, s.AwaitingPlacement)
	}
}

func TestEveryPathReachesEnding(t *testing.T) {
	var paths [][]int
	var walk func(sceneID string, prefix []int)
	walk = func(sceneID string, prefix []int) {
		if sceneID == sceneEnding {
			paths = append(paths, append([]int(nil), prefix...))
			return
		}
		for i, c := range sceneGraph[sceneID].Choices {
			walk(c.Next, append(prefix, i))
		}
	}
	walk(sceneFirst, nil)
	if len(paths) == 0 {
		t.Fatalf("no paths found from %s", sceneFirst)
	}

	for _, path := range paths {
		store := newTestStore()
		s := newTestSession(t, store, "normal")
		for _, index := range path {
			scene := s.CurrentScene
			if reason, ok := makeChoiceLocked(store, s, scene, index, false); !ok {
				t.Fatalf("path %v: choice %s/%d refused: %s", path, scene, index, reason)
			}
			if s.AwaitingPlacement {
				s.CityFunds = 100
				cell := -1
				for i := range s.Grid {
					if s.Grid[i] == nil {
						cell = i
						break
					}
				}
				if reason, ok := placeBuildingLocked(store, s, cell, s.PendingBuilding); !ok {
					t.Fatalf("path %v: mandatory %s placement refused: %s", path, s.PendingBuilding, reason)
				}
			}
		}
		if s.CompletedAt.IsZero() || s.CurrentScene != sceneEnding {
			t.Fatalf("path %v ended at %q without completing", path, s.CurrentScene)
		}
	}
}

func TestConsequenceEventDetails(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.TimerRemaining = 50

	if reason, ok := makeChoiceLocked(store, s, sceneFirst, 0, false); !ok {
		t.Fatalf("makeChoice: %s", reason)
	}

	var consequence *GameEvent
	for i := range s.Events {
		if s.Events[i].Type == "consequence" {
			consequence = &s.Events[i]
		}
	}
	if consequence == nil {
		t.Fatalf("no consequence event emitted")
	}
	if consequence.Delta == nil || *consequence.Delta != (StatDelta{Happiness: 10, CityFunds: 20, SpecialInterest: 15, PersonalProfit: 5}) {
		t.Fatalf("consequence delta = %+v", consequence.Delta)
	}
	if consequence.TimeBonusEarned != 100 {
		t.Fatalf("consequence time bonus = %d, want 100", consequence.TimeBonusEarned)
	}
	if consequence.BankAdjustment != 10 {
		t.Fatalf("consequence bank adjustment = %d, want 10", consequence.BankAdjustment)
	}
}

func TestMakeChoiceGuards(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")

	if _, ok := makeChoiceLocked(store, s, "choice2A", 0, false); ok {
		t.Fatalf("choice for a non-current scene should fail")
	}
	if _, ok := makeChoiceLocked(store, s, sceneFirst, 9, false); ok {
		t.Fatalf("out-of-range choice index should fail")
	}

	s.AwaitingPlacement = true
	if _, ok := makeChoiceLocked(store, s, sceneFirst, 0, false); ok {
		t.Fatalf("choice while awaiting placement should fail")
	}
	s.AwaitingPlacement = false

	s.CompletedAt = time.Now().UTC()
	if _, ok := makeChoiceLocked(store, s, sceneFirst, 0, false); ok {
		t.Fatalf("choice after completion should fail")
	}
}

func TestNegativeChoiceDrainsTimeBank(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.TimerRemaining = 10

	// Rejecting the factory sums to -35 raw impact.
	if reason, ok := makeChoiceLocked(store, s, sceneFirst, 1, false); !ok {
		t.Fatalf("makeChoice: %s", reason)
	}
	if s.TimeBankSeconds != -5 {
		t.Fatalf("time bank = %d, want -5", s.TimeBankSeconds)
	}
	if s.Happiness != 40 || s.CityFunds != 50 || s.SpecialInterest != 35 {
		t.Fatalf("stats = %d/%d/%d, want 40/50/35", s.Happiness, s.CityFunds, s.SpecialInterest)
	}
	if s.CurrentScene != "choice2B" {
		t.Fatalf("scene = %q, want choice2B", s.CurrentScene)
	}
	// Next countdown is shortened by the drained bank.
	if s.TimerDuration != 55 {
		t.Fatalf("timer duration = %d, want 55", s.TimerDuration)
	}
}

func TestStatsClampToBounds(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.Happiness = 2
	s.CityFunds = 99

	applyEffectsLocked(s, StatDelta{Happiness: -10, CityFunds: 20, PersonalProfit: -3})
	if s.Happiness != 0 {
		t.Fatalf("happiness = %d, want clamp to 0", s.Happiness)
	}
	if s.CityFunds != 100 {
		t.Fatalf("funds = %d, want clamp to 100", s.CityFunds)
	}
	if s.PersonalProfit != -3 {
		t.Fatalf("profit = %d, want -3 (never clamped)", s.PersonalProfit)
	}
}

func TestFinalizeScoringAndRating(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.CurrentScene = "choice4A11"
	startTimerLocked(store, s)
	s.TimerRemaining = 40
	s.TimeBonus = 100

	if reason, ok := makeChoiceLocked(store, s, "choice4A11", 0, false); !ok {
		t.Fatalf("makeChoice: %s", reason)
	}
	if s.CurrentScene != sceneEnding {
		t.Fatalf("scene = %q, want ending", s.CurrentScene)
	}
	if s.CompletedAt.IsZero() {
		t.Fatalf("session should be completed")
	}
	if !containsString(s.Achievements, "rush_hour") {
		t.Fatalf("finishing quickly should award rush_hour")
	}

	base := float64(s.Happiness+s.CityFunds+s.SpecialInterest) / 3
	want := base + float64(s.TimeBonus)/10 + float64(len(s.Achievements)*10)
	if s.FinalScore != want {
		t.Fatalf("final score = %v, want %v", s.FinalScore, want)
	}
	if s.Rating != ratingForScore(s.FinalScore) {
		t.Fatalf("rating = %q inconsistent with score", s.Rating)
	}
	if s.TimerRunning {
		t.Fatalf("timer must stop at the ending")
	}
}

func TestRatingForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{85, "Excellent"},
		{70, "Excellent"},
		{69.9, "Decent"},
		{50, "Decent"},
		{49, "Struggling"},
		{30, "Struggling"},
		{29, "Failed"},
		{0, "Failed"},
	}
	for _, tc := range tests {
		if got := ratingForScore(tc.score); got != tc.want {
			t.Fatalf("ratingForScore(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestProfitNarrative(t *testing.T) {
	if got := profitNarrative(20); got == "" || got == profitNarrative(0) {
		t.Fatalf("high profit narrative = %q", got)
	}
	if got := profitNarrative(10); got == "" || got == profitNarrative(20) {
		t.Fatalf("mid profit narrative = %q", got)
	}
	if got := profitNarrative(0); got == "" {
		t.Fatalf("ethical narrative should not be empty")
	}
	if got := profitNarrative(3); got != "" {
		t.Fatalf("small positive profit narrative = %q, want empty", got)
	}
}

func TestCompleteTutorialOnce(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")

	if reason, ok := completeTutorialLocked(store, s); !ok {
		t.Fatalf("completeTutorial: %s", reason)
	}
	if s.TimeBankSeconds != tutorialBankSecs {
		t.Fatalf("bank = %d, want %d", s.TimeBankSeconds, tutorialBankSecs)
	}
	if _, ok := completeTutorialLocked(store, s); ok {
		t.Fatalf("second tutorial completion should fail")
	}
	if s.TimeBankSeconds != tutorialBankSecs {
		t.Fatalf("bank changed on repeat completion")
	}
}

func TestEventLogCapped(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	for i := 0; i < maxSessionEvents*2; i++ {
		addEventLocked(store, s, "noise", "tick")
	}
	if len(s.Events) != maxSessionEvents {
		t.Fatalf("events len = %d, want cap %d", len(s.Events), maxSessionEvents)
	}
	last := s.Events[len(s.Events)-1]
	if last.ID != store.NextEventID {
		t.Fatalf("newest event id = %d, want %d", last.ID, store.NextEventID)
	}
}
