package main

import (
	"time"

	"github.com/google/uuid"
)

const (
	maxSessionEvents = 100
	maxUndoHistory   = 3
	relocationFee    = 5
	rushHourLimit    = 8 * time.Minute
	tutorialBankSecs = 30
)

type Decision struct {
	Scene     string `json:"scene"`
	Choice    string `json:"choice"`
	TimeSpent int    `json:"timeSpent"`
	TimedOut  bool   `json:"timedOut,omitempty"`
}

type PlacedBuilding struct {
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	Cost     int       `json:"cost"`
	Effect   string    `json:"effect"`
	PlacedAt time.Time `json:"placedAt"`
}

type statSnapshot struct {
	Happiness       int `json:"happiness"`
	CityFunds       int `json:"cityFunds"`
	SpecialInterest int `json:"specialInterest"`
}

type UndoRecord struct {
	CellIndex int            `json:"cellIndex"`
	Building  PlacedBuilding `json:"building"`
	Prev      statSnapshot   `json:"prev"`
}

type Zone struct {
	Type  string    `json:"type"`
	Name  string    `json:"name"`
	Icon  string    `json:"icon"`
	Count int       `json:"count"`
	Bonus StatDelta `json:"bonus"`
}

type GameEvent struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`

	// Set on consequence events only.
	Delta           *StatDelta `json:"delta,omitempty"`
	TimeBonusEarned int        `json:"timeBonusEarned,omitempty"`
	BankAdjustment  int        `json:"bankAdjustment,omitempty"`

	At time.Time `json:"at"`
}

type Session struct {
	ID         string `json:"id"`
	PlayerName string `json:"playerName"`
	Difficulty string `json:"difficulty"`

	CurrentScene string `json:"currentScene"`

	Happiness       int `json:"happiness"`
	CityFunds       int `json:"cityFunds"`
	SpecialInterest int `json:"specialInterest"`
	PersonalProfit  int `json:"personalProfit"`

	Decisions       []Decision `json:"decisions"`
	TimeBonus       int        `json:"timeBonus"`
	TimeBankSeconds int        `json:"timeBankSeconds"`

	GridCols int               `json:"gridCols"`
	GridRows int               `json:"gridRows"`
	Grid     []*PlacedBuilding `json:"grid"`

	History         []UndoRecord `json:"history"`
	UndoCount       int          `json:"undoCount"`
	RelocationsUsed int          `json:"relocationsUsed"`

	DetectedZones []Zone `json:"detectedZones"`
	Efficiency    int    `json:"efficiency"`

	UnlockedBuildings []string `json:"unlockedBuildings"`
	Achievements      []string `json:"achievements"`

	PendingBuilding   string `json:"pendingBuilding,omitempty"`
	PendingNext       string `json:"pendingNext,omitempty"`
	AwaitingPlacement bool   `json:"awaitingPlacement"`

	TutorialDone bool `json:"tutorialDone"`

	TimerRunning   bool            `json:"timerRunning"`
	TimerRemaining int             `json:"timerRemaining"`
	TimerDuration  int             `json:"timerDuration"`
	FiredBands     map[string]bool `json:"firedBands"`

	Events []GameEvent `json:"events"`

	CreatedAt   time.Time `json:"createdAt"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`

	FinalScore float64 `json:"finalScore"`
	Rating     string  `json:"rating"`
}

func newSessionLocked(store *Store, playerName, difficultyID string) (*Session, string) {
	mode, ok := difficultyModes[difficultyID]
	if !ok {
		return nil, "unknown difficulty"
	}
	if playerName == "" {
		playerName = "Anonymous"
	}
	now := time.Now().UTC()
	cols, rows := gridDimensions(sizeClassLarge)
	s := &Session{
		ID:                uuid.NewString(),
		PlayerName:        playerName,
		Difficulty:        mode.ID,
		CurrentScene:      sceneFirst,
		Happiness:         50,
		CityFunds:         mode.StartingFunds,
		SpecialInterest:   50,
		GridCols:          cols,
		GridRows:          rows,
		Grid:              make([]*PlacedBuilding, cols*rows),
		UndoCount:         mode.UndoLimit,
		UnlockedBuildings: []string{},
		Achievements:      []string{},
		FiredBands:        map[string]bool{},
		CreatedAt:         now,
		StartedAt:         now,
	}
	store.Sessions[s.ID] = s
	addEventLocked(store, s, "scene", "Your term as mayor begins.")
	startTimerLocked(store, s)
	return s, ""
}

func applyEffectsLocked(s *Session, d StatDelta) {
	s.Happiness = clampInt(s.Happiness+d.Happiness, 0, 100)
	s.CityFunds = clampInt(s.CityFunds+d.CityFunds, 0, 100)
	s.SpecialInterest = clampInt(s.SpecialInterest+d.SpecialInterest, 0, 100)
	s.PersonalProfit += d.PersonalProfit
}

func negateDelta(d StatDelta) StatDelta {
	return StatDelta{
		Happiness:       -d.Happiness,
		CityFunds:       -d.CityFunds,
		SpecialInterest: -d.SpecialInterest,
		PersonalProfit:  -d.PersonalProfit,
	}
}

// makeChoiceLocked resolves one decision. The timer is stopped before any
// state mutates, so a tick-driven timeout and a manual choice can never
// both resolve the same scene.
func makeChoiceLocked(store *Store, s *Session, sceneID string, choiceIndex int, timedOut bool) (string, bool) {
	if !s.CompletedAt.IsZero() {
		return "the game is over", false
	}
	if s.AwaitingPlacement {
		return "place the required building first", false
	}
	if sceneID != s.CurrentScene {
		return "that decision has already passed", false
	}
	scene, ok := sceneGraph[sceneID]
	if !ok || len(scene.Choices) == 0 {
		return "no choices here", false
	}
	if choiceIndex < 0 || choiceIndex >= len(scene.Choices) {
		return "unknown choice", false
	}
	choice := scene.Choices[choiceIndex]

	remaining := 0
	duration := s.TimerDuration
	if s.TimerRunning {
		remaining = s.TimerRemaining
	}
	stopTimerLocked(s)

	earned := remaining * 2
	s.TimeBonus += earned
	s.Decisions = append(s.Decisions, Decision{
		Scene:     sceneID,
		Choice:    choice.Text,
		TimeSpent: duration - remaining,
		TimedOut:  timedOut,
	})

	for _, id := range choice.Unlocks {
		if containsString(s.UnlockedBuildings, id) {
			continue
		}
		s.UnlockedBuildings = append(s.UnlockedBuildings, id)
		bt := buildingCatalog[id]
		addEventLocked(store, s, "unlock", "New building unlocked: "+bt.Name)
	}

	// Time bank looks at the raw stat sum, before clamping.
	impact := choice.Effects.Happiness + choice.Effects.CityFunds + choice.Effects.SpecialInterest
	bank := 0
	if impact > 5 {
		bank = 10
	} else if impact < -5 {
		bank = -5
	}
	s.TimeBankSeconds += bank

	applyEffectsLocked(s, choice.Effects)
	if choice.Consequence != "" {
		delta := choice.Effects
		pushEventLocked(store, s, GameEvent{
			Type:            "consequence",
			Text:            choice.Consequence,
			Delta:           &delta,
			TimeBonusEarned: earned,
			BankAdjustment:  bank,
		})
	}

	checkAchievementsLocked(store, s)

	if choice.Building != "" {
		if bt, exists := buildingCatalog[choice.Building]; exists {
			// The story demands this building, so the gate grants it even
			// when no prior choice unlocked it.
			if !containsString(s.UnlockedBuildings, choice.Building) {
				s.UnlockedBuildings = append(s.UnlockedBuildings, choice.Building)
				addEventLocked(store, s, "unlock", "New building unlocked: "+bt.Name)
			}
			s.PendingBuilding = choice.Building
			s.PendingNext = choice.Next
			s.AwaitingPlacement = true
			addEventLocked(store, s, "placement_required", "Place a "+bt.Name+" to continue the story.")
			return "", true
		}
	}
	advanceSceneLocked(store, s, choice.Next)
	return "", true
}

func completeMandatoryPlacementLocked(store *Store, s *Session) {
	next := s.PendingNext
	s.PendingBuilding = ""
	s.PendingNext = ""
	s.AwaitingPlacement = false
	addEventLocked(store, s, "placement_complete", "Mandatory building placed. The story continues.")
	advanceSceneLocked(store, s, next)
}

func advanceSceneLocked(store *Store, s *Session, next string) {
	s.CurrentScene = next
	if scene, ok := sceneGraph[next]; ok {
		addEventLocked(store, s, "scene", scene.Title)
	}
	if next == sceneEnding {
		finalizeSessionLocked(store, s)
		return
	}
	startTimerLocked(store, s)
}

func finalizeSessionLocked(store *Store, s *Session) {
	if !s.CompletedAt.IsZero() {
		return
	}
	now := time.Now().UTC()
	s.CompletedAt = now

	if now.Sub(s.StartedAt) < rushHourLimit && !containsString(s.Achievements, "rush_hour") {
		s.Achievements = append(s.Achievements, "rush_hour")
		addEventLocked(store, s, "achievement_unlocked", "Achievement: Rush Hour")
	}
	checkAchievementsLocked(store, s)

	base := float64(s.Happiness+s.CityFunds+s.SpecialInterest) / 3
	achievementBonus := len(s.Achievements) * 10
	s.FinalScore = base + float64(s.TimeBonus)/10 + float64(achievementBonus)
	s.Rating = ratingForScore(s.FinalScore)
	addEventLocked(store, s, "ending", "Your term ends: "+s.Rating)
}

func ratingForScore(score float64) string {
	switch {
	case score >= 70:
		return "Excellent"
	case score >= 50:
		return "Decent"
	case score >= 30:
		return "Struggling"
	default:
		return "Failed"
	}
}

func profitNarrative(profit int) string {
	switch {
	case profit > 15:
		return "Your personal profit-taking has not gone unnoticed. Citizens question your integrity."
	case profit > 5:
		return "You made some personal profit along the way. Not illegal, but not exactly selfless leadership either."
	case profit <= 0:
		return "You remained ethical and avoided personal enrichment. Citizens respect your integrity!"
	default:
		return ""
	}
}

func completeTutorialLocked(store *Store, s *Session) (string, bool) {
	if s.TutorialDone {
		return "tutorial already completed", false
	}
	s.TutorialDone = true
	s.TimeBankSeconds += tutorialBankSecs
	addEventLocked(store, s, "tutorial", "Tutorial completed. Bonus time banked for your next decision.")
	return "", true
}

func addEventLocked(store *Store, s *Session, eventType, text string) {
	pushEventLocked(store, s, GameEvent{Type: eventType, Text: text})
}

func pushEventLocked(store *Store, s *Session, e GameEvent) {
	store.NextEventID++
	e.ID = store.NextEventID
	e.At = time.Now().UTC()
	s.Events = append(s.Events, e)
	if len(s.Events) > maxSessionEvents {
		s.Events = s.Events[len(s.Events)-maxSessionEvents:]
	}
	if store.hub != nil {
		store.hub.publish(s.ID, e.Type, e)
	}
}

// ensureSessionMaps repairs nil maps and slices on sessions decoded from a
// saved snapshot.
func ensureSessionMaps(s *Session) {
	if s.FiredBands == nil {
		s.FiredBands = map[string]bool{}
	}
	if s.UnlockedBuildings == nil {
		s.UnlockedBuildings = []string{}
	}
	if s.Achievements == nil {
		s.Achievements = []string{}
	}
	if s.Grid == nil {
		cols, rows := gridDimensions(sizeClassLarge)
		s.GridCols = cols
		s.GridRows = rows
		s.Grid = make([]*PlacedBuilding, cols*rows)
	}
}

func containsString(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func clampInt(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
