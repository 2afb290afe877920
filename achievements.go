package main

type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
}

var achievementDefinitions = map[string]Achievement{
	"lightning_mayor":   {ID: "lightning_mayor", Name: "Lightning Mayor", Description: "All decisions under 30s", Icon: "⚡", Category: "speed"},
	"time_master":       {ID: "time_master", Name: "Time Master", Description: "Earned 150+ time bonus points", Icon: "⏱️", Category: "speed"},
	"rush_hour":         {ID: "rush_hour", Name: "Rush Hour", Description: "Completed game in under 8 minutes", Icon: "🏃", Category: "speed"},
	"architect":         {ID: "architect", Name: "Architect", Description: "Placed 15+ buildings", Icon: "🏗️", Category: "building"},
	"city_planner":      {ID: "city_planner", Name: "City Planner", Description: "Planning efficiency > 85", Icon: "📐", Category: "building"},
	"green_mayor":       {ID: "green_mayor", Name: "Green Mayor", Description: "6+ parks placed", Icon: "🌳", Category: "building"},
	"industrial_tycoon": {ID: "industrial_tycoon", Name: "Industrial Tycoon", Description: "8+ factories", Icon: "🏭", Category: "building"},
	"urban_designer":    {ID: "urban_designer", Name: "Urban Designer", Description: "Perfect adjacency score", Icon: "✨", Category: "building"},
	"balanced_leader":   {ID: "balanced_leader", Name: "Balanced Leader", Description: "All stats within 10 points", Icon: "⚖️", Category: "balance"},
	"popular_mayor":     {ID: "popular_mayor", Name: "Popular Mayor", Description: "Happiness > 85", Icon: "😊", Category: "balance"},
	"rich_city":         {ID: "rich_city", Name: "Rich City", Description: "City funds > 90", Icon: "💰", Category: "balance"},
	"well_connected":    {ID: "well_connected", Name: "Well-Connected", Description: "Special interest > 80", Icon: "🏛️", Category: "balance"},
	"perfect_mayor":     {ID: "perfect_mayor", Name: "Perfect Mayor", Description: "All stats > 90, efficiency > 85, time bonus > 200", Icon: "👑", Category: "perfect"},
}

// checkAchievementsLocked re-evaluates every condition against current state.
// Unlocks are permanent for the session; conditions going false later never
// revoke them.
func checkAchievementsLocked(store *Store, s *Session) {
	award := func(id string) {
		if containsString(s.Achievements, id) {
			return
		}
		s.Achievements = append(s.Achievements, id)
		def := achievementDefinitions[id]
		addEventLocked(store, s, "achievement_unlocked", "Achievement: "+def.Name)
	}

	if len(s.Decisions) > 0 {
		allFast := true
		for _, d := range s.Decisions {
			if d.TimeSpent > 30 {
				allFast = false
				break
			}
		}
		if allFast {
			award("lightning_mayor")
		}
	}
	if s.TimeBonus >= 150 {
		award("time_master")
	}

	counts := countBuildingsByType(s)
	total := 0
	for _, n := range counts {
		total += n
	}
	if total >= 15 {
		award("architect")
	}
	if s.Efficiency > 85 {
		award("city_planner")
	}
	if counts["park"] >= 6 {
		award("green_mayor")
	}
	if counts["factory"] >= 8 {
		award("industrial_tycoon")
	}

	if total >= 5 {
		allBonused := true
		for i, cell := range s.Grid {
			if cell == nil {
				continue
			}
			delta, _ := calculateAdjacency(s, i, cell.Type)
			rule, hasRule := adjacencyRules[cell.Type]
			if !hasRule || rule.Penalty || delta == (StatDelta{}) {
				allBonused = false
				break
			}
		}
		if allBonused {
			award("urban_designer")
		}
	}

	maxStat := s.Happiness
	minStat := s.Happiness
	for _, v := range []int{s.CityFunds, s.SpecialInterest} {
		if v > maxStat {
			maxStat = v
		}
		if v < minStat {
			minStat = v
		}
	}
	if maxStat-minStat <= 10 {
		award("balanced_leader")
	}
	if s.Happiness > 85 {
		award("popular_mayor")
	}
	if s.CityFunds > 90 {
		award("rich_city")
	}
	if s.SpecialInterest > 80 {
		award("well_connected")
	}

	if s.Happiness > 90 && s.CityFunds > 90 && s.SpecialInterest > 90 &&
		s.Efficiency > 85 && s.TimeBonus > 200 {
		award("perfect_mayor")
	}
}
