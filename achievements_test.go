package main

import "testing"

func placeN(s *Session, buildingID string, n int) {
	bt := buildingCatalog[buildingID]
	placed := 0
	for i := range s.Grid {
		if placed == n {
			return
		}
		if s.Grid[i] == nil {
			s.Grid[i] = &PlacedBuilding{Type: bt.ID, Name: bt.Name, Icon: bt.Icon, Cost: bt.Cost, Effect: bt.Effect}
			placed++
		}
	}
}

func TestStatThresholdAchievements(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *Session)
		want  string
	}{
		{"popular mayor", func(s *Session) { s.Happiness = 86 }, "popular_mayor"},
		{"rich city", func(s *Session) { s.CityFunds = 91 }, "rich_city"},
		{"well connected", func(s *Session) { s.SpecialInterest = 81 }, "well_connected"},
		{"time master", func(s *Session) { s.TimeBonus = 150 }, "time_master"},
		{"city planner", func(s *Session) { s.Efficiency = 86 }, "city_planner"},
	}
	for _, tc := range tests {
		store := newTestStore()
		s := newTestSession(t, store, "normal")
		tc.setup(s)
		checkAchievementsLocked(store, s)
		if !containsString(s.Achievements, tc.want) {
			t.Fatalf("%s: achievements = %v, want %s", tc.name, s.Achievements, tc.want)
		}
	}
}

func TestThresholdsAreStrict(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.Happiness = 85
	s.CityFunds = 90
	s.SpecialInterest = 80
	s.TimeBonus = 149
	checkAchievementsLocked(store, s)
	for _, id := range []string{"popular_mayor", "rich_city", "well_connected", "time_master"} {
		if containsString(s.Achievements, id) {
			t.Fatalf("%s awarded at its boundary value", id)
		}
	}
}

func TestBalancedLeader(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.Happiness = 50
	s.CityFunds = 60
	s.SpecialInterest = 55
	checkAchievementsLocked(store, s)
	if !containsString(s.Achievements, "balanced_leader") {
		t.Fatalf("spread of 10 should award balanced_leader")
	}

	store2 := newTestStore()
	s2 := newTestSession(t, store2, "normal")
	s2.Happiness = 50
	s2.CityFunds = 61
	s2.SpecialInterest = 55
	checkAchievementsLocked(store2, s2)
	if containsString(s2.Achievements, "balanced_leader") {
		t.Fatalf("spread of 11 must not award balanced_leader")
	}
}

func TestBuildingCountAchievements(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	placeN(s, "park", 6)
	placeN(s, "factory", 8)
	placeN(s, "house", 1)
	checkAchievementsLocked(store, s)

	if !containsString(s.Achievements, "green_mayor") {
		t.Fatalf("6 parks should award green_mayor")
	}
	if !containsString(s.Achievements, "industrial_tycoon") {
		t.Fatalf("8 factories should award industrial_tycoon")
	}
	if !containsString(s.Achievements, "architect") {
		t.Fatalf("15 buildings should award architect")
	}
}

func TestLightningMayorRequiresDecisions(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	checkAchievementsLocked(store, s)
	if containsString(s.Achievements, "lightning_mayor") {
		t.Fatalf("no decisions yet, lightning_mayor must wait")
	}

	s.Decisions = append(s.Decisions, Decision{Scene: sceneFirst, TimeSpent: 12})
	checkAchievementsLocked(store, s)
	if !containsString(s.Achievements, "lightning_mayor") {
		t.Fatalf("one fast decision should award lightning_mayor")
	}

	store2 := newTestStore()
	s2 := newTestSession(t, store2, "normal")
	s2.Decisions = append(s2.Decisions, Decision{TimeSpent: 12}, Decision{TimeSpent: 31})
	checkAchievementsLocked(store2, s2)
	if containsString(s2.Achievements, "lightning_mayor") {
		t.Fatalf("a slow decision disqualifies lightning_mayor")
	}
}

func TestPerfectMayor(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.Happiness = 95
	s.CityFunds = 95
	s.SpecialInterest = 95
	s.Efficiency = 90
	s.TimeBonus = 201
	checkAchievementsLocked(store, s)
	if !containsString(s.Achievements, "perfect_mayor") {
		t.Fatalf("achievements = %v, want perfect_mayor", s.Achievements)
	}
}

func TestAchievementsNeverDuplicateOrRevoke(t *testing.T) {
	store := newTestStore()
	s := newTestSession(t, store, "normal")
	s.Happiness = 90
	checkAchievementsLocked(store, s)
	n := len(s.Achievements)

	checkAchievementsLocked(store, s)
	if len(s.Achievements) != n {
		t.Fatalf("repeat check changed achievements: %v", s.Achievements)
	}

	// Condition goes false later; the unlock stays.
	s.Happiness = 10
	checkAchievementsLocked(store, s)
	if !containsString(s.Achievements, "popular_mayor") {
		t.Fatalf("achievement revoked when its condition lapsed")
	}
}
