package main

import (
	"context"
	"encoding/json"
	"log"
	mathrand "math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultAddr       = ":8080"
	autosaveEvery     = 30 * time.Second
	maxLeaderboardLen = 100
)

type Store struct {
	mu sync.Mutex

	Sessions    map[string]*Session
	NextEventID int64

	rng  *mathrand.Rand
	repo *SQLRepository
	hub  *Hub
}

func newStore() *Store {
	return &Store{
		Sessions: map[string]*Session{},
		rng:      mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

func main() {
	if err := validateSceneGraph(); err != nil {
		log.Fatalf("scene graph: %v", err)
	}

	store, err := newConfiguredStore()
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	hub := newHub()
	store.hub = hub
	go hub.run()

	startTimerScheduler(store)
	startAutosaveScheduler(store)

	mux := newMux(store)
	addr := serverAddr()
	log.Printf("listening on http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func serverAddr() string {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		return ":" + port
	}
	return defaultAddr
}

// Autosave: snapshot every in-flight session on a fixed cadence,
// best-effort. Failures are logged and retried on the next interval.
func startAutosaveScheduler(store *Store) {
	go func() {
		ticker := time.NewTicker(autosaveEvery)
		defer ticker.Stop()
		for range ticker.C {
			store.mu.Lock()
			if store.repo != nil {
				for _, s := range store.Sessions {
					if !s.CompletedAt.IsZero() {
						continue
					}
					if err := store.repo.SaveGame(context.Background(), s); err != nil {
						log.Printf("autosave %s: %v", s.ID, err)
					}
				}
			}
			store.mu.Unlock()
		}
	}()
}

type apiError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Success: false, Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func newMux(store *Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": "mayor game backend is running"})
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(store.hub, w, r)
	})

	mux.HandleFunc("/api/game/new", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			PlayerName string `json:"playerName"`
			Difficulty string `json:"difficulty"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Difficulty == "" {
			req.Difficulty = "normal"
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		s, reason := newSessionLocked(store, strings.TrimSpace(req.PlayerName), req.Difficulty)
		if reason != "" {
			writeError(w, http.StatusBadRequest, reason)
			return
		}
		if store.repo != nil {
			if err := store.repo.CreateSession(context.Background(), s); err != nil {
				log.Printf("create session row %s: %v", s.ID, err)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/state/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/game/state/")

		store.mu.Lock()
		defer store.mu.Unlock()

		s := store.Sessions[id]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/choice", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			SessionID   string `json:"sessionId"`
			SceneID     string `json:"sceneId"`
			ChoiceIndex int    `json:"choiceIndex"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		s := store.Sessions[req.SessionID]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if reason, ok := makeChoiceLocked(store, s, req.SceneID, req.ChoiceIndex, false); !ok {
			writeError(w, http.StatusBadRequest, reason)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/place", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			SessionID string `json:"sessionId"`
			CellIndex int    `json:"cellIndex"`
			Building  string `json:"building"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		s := store.Sessions[req.SessionID]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if reason, ok := placeBuildingLocked(store, s, req.CellIndex, req.Building); !ok {
			writeError(w, http.StatusBadRequest, reason)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/relocate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			SessionID   string `json:"sessionId"`
			SourceIndex int    `json:"sourceIndex"`
			DestIndex   int    `json:"destIndex"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		s := store.Sessions[req.SessionID]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if reason, ok := relocateBuildingLocked(store, s, req.SourceIndex, req.DestIndex); !ok {
			writeError(w, http.StatusBadRequest, reason)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/sell", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			SessionID string `json:"sessionId"`
			CellIndex int    `json:"cellIndex"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		s := store.Sessions[req.SessionID]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if reason, ok := sellBuildingLocked(store, s, req.CellIndex); !ok {
			writeError(w, http.StatusBadRequest, reason)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/undo", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			SessionID string `json:"sessionId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		s := store.Sessions[req.SessionID]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if reason, ok := undoPlacementLocked(store, s); !ok {
			writeError(w, http.StatusBadRequest, reason)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/resize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			SessionID string `json:"sessionId"`
			SizeClass string `json:"sizeClass"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		s := store.Sessions[req.SessionID]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		resizeGridLocked(store, s, req.SizeClass)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/tutorial", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			SessionID string `json:"sessionId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		s := store.Sessions[req.SessionID]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if reason, ok := completeTutorialLocked(store, s); !ok {
			writeError(w, http.StatusBadRequest, reason)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/save", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			SessionID string `json:"sessionId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "session ID required")
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		if store.repo == nil {
			writeError(w, http.StatusServiceUnavailable, "persistence disabled")
			return
		}
		s := store.Sessions[req.SessionID]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err := store.repo.SaveGame(context.Background(), s); err != nil {
			log.Printf("save game %s: %v", s.ID, err)
			writeError(w, http.StatusInternalServerError, "save failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "save": map[string]any{
			"sessionId":    s.ID,
			"score":        int(s.FinalScore),
			"currentScene": s.CurrentScene,
		}})
	})

	mux.HandleFunc("/api/game/load/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/game/load/")

		store.mu.Lock()
		defer store.mu.Unlock()

		if store.repo == nil {
			writeError(w, http.StatusServiceUnavailable, "persistence disabled")
			return
		}
		s, err := store.repo.LoadGame(context.Background(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		// Resuming replaces any in-memory copy with the saved snapshot.
		ensureSessionMaps(s)
		store.Sessions[s.ID] = s
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "save": buildStateLocked(s)})
	})

	mux.HandleFunc("/api/game/complete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			SessionID string `json:"sessionId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "session ID required")
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		s := store.Sessions[req.SessionID]
		if s == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if s.CompletedAt.IsZero() {
			writeError(w, http.StatusBadRequest, "game is not finished")
			return
		}
		if store.repo != nil {
			updated, err := store.repo.CompleteSession(context.Background(), s)
			if err != nil {
				log.Printf("complete session %s: %v", s.ID, err)
				writeError(w, http.StatusInternalServerError, "completion failed")
				return
			}
			if !updated {
				writeError(w, http.StatusNotFound, "session not found or already completed")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": buildSummaryLocked(s)})
	})

	mux.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		difficulty := r.URL.Query().Get("difficulty")
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = minInt(n, maxLeaderboardLen)
			}
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		if store.repo == nil {
			writeError(w, http.StatusServiceUnavailable, "persistence disabled")
			return
		}
		rows, err := store.repo.Leaderboard(context.Background(), difficulty, limit)
		if err != nil {
			log.Printf("leaderboard: %v", err)
			writeError(w, http.StatusInternalServerError, "leaderboard query failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "leaderboard": rows})
	})

	mux.HandleFunc("/api/stats/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/stats/")

		store.mu.Lock()
		defer store.mu.Unlock()

		if store.repo == nil {
			writeError(w, http.StatusServiceUnavailable, "persistence disabled")
			return
		}
		row, err := store.repo.SessionStats(context.Background(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": row})
	})

	mux.HandleFunc("/api/analytics/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		store.mu.Lock()
		defer store.mu.Unlock()

		if store.repo == nil {
			writeError(w, http.StatusServiceUnavailable, "persistence disabled")
			return
		}
		rows, err := store.repo.AnalyticsSummary(context.Background())
		if err != nil {
			log.Printf("analytics: %v", err)
			writeError(w, http.StatusInternalServerError, "analytics query failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "analytics": rows})
	})

	return mux
}

// SceneView is the client-facing shape of the current scene.
type SceneView struct {
	ID        string   `json:"id"`
	Chapter   string   `json:"chapter,omitempty"`
	Title     string   `json:"title"`
	Story     string   `json:"story"`
	Choices   []Choice `json:"choices,omitempty"`
	SelectsAt bool     `json:"isDifficultySelection,omitempty"`
}

type StateView struct {
	SessionID  string `json:"sessionId"`
	PlayerName string `json:"playerName"`
	Difficulty string `json:"difficulty"`

	Scene SceneView `json:"scene"`

	Happiness       int `json:"happiness"`
	CityFunds       int `json:"cityFunds"`
	SpecialInterest int `json:"specialInterest"`
	PersonalProfit  int `json:"personalProfit"`
	DecisionsMade   int `json:"decisionsMade"`

	TimeBonus       int  `json:"timeBonus"`
	TimeBankSeconds int  `json:"timeBankSeconds"`
	TimerRunning    bool `json:"timerRunning"`
	TimerRemaining  int  `json:"timerRemaining"`
	TimerDuration   int  `json:"timerDuration"`

	GridCols int               `json:"gridCols"`
	GridRows int               `json:"gridRows"`
	Grid     []*PlacedBuilding `json:"grid"`

	UndoCount       int `json:"undoCount"`
	RelocationsLeft int `json:"relocationsLeft"`
	Efficiency      int `json:"efficiency"`

	Zones             []Zone   `json:"zones"`
	UnlockedBuildings []string `json:"unlockedBuildings"`
	Achievements      []string `json:"achievements"`

	AwaitingPlacement bool   `json:"awaitingPlacement"`
	PendingBuilding   string `json:"pendingBuilding,omitempty"`

	Events []GameEvent `json:"events"`

	Completed  bool    `json:"completed"`
	FinalScore float64 `json:"finalScore,omitempty"`
	Rating     string  `json:"rating,omitempty"`
}

func buildStateLocked(s *Session) StateView {
	mode := difficultyModes[s.Difficulty]
	view := StateView{
		SessionID:         s.ID,
		PlayerName:        s.PlayerName,
		Difficulty:        s.Difficulty,
		Happiness:         s.Happiness,
		CityFunds:         s.CityFunds,
		SpecialInterest:   s.SpecialInterest,
		PersonalProfit:    s.PersonalProfit,
		DecisionsMade:     len(s.Decisions),
		TimeBonus:         s.TimeBonus,
		TimeBankSeconds:   s.TimeBankSeconds,
		TimerRunning:      s.TimerRunning,
		TimerRemaining:    s.TimerRemaining,
		TimerDuration:     s.TimerDuration,
		GridCols:          s.GridCols,
		GridRows:          s.GridRows,
		Grid:              s.Grid,
		UndoCount:         s.UndoCount,
		RelocationsLeft:   mode.MaxRelocation - s.RelocationsUsed,
		Efficiency:        s.Efficiency,
		Zones:             s.DetectedZones,
		UnlockedBuildings: s.UnlockedBuildings,
		Achievements:      s.Achievements,
		AwaitingPlacement: s.AwaitingPlacement,
		PendingBuilding:   s.PendingBuilding,
		Events:            s.Events,
		Completed:         !s.CompletedAt.IsZero(),
		FinalScore:        s.FinalScore,
		Rating:            s.Rating,
	}
	if scene, ok := sceneGraph[s.CurrentScene]; ok {
		view.Scene = SceneView{ID: scene.ID, Chapter: scene.Chapter, Title: scene.Title, Story: scene.Story, Choices: scene.Choices, SelectsAt: scene.SelectsAt}
	}
	return view
}

type SummaryView struct {
	SessionID        string   `json:"sessionId"`
	PlayerName       string   `json:"playerName"`
	Difficulty       string   `json:"difficulty"`
	Rating           string   `json:"rating"`
	BaseScore        float64  `json:"baseScore"`
	TimeBonus        int      `json:"timeBonus"`
	AchievementBonus int      `json:"achievementBonus"`
	FinalScore       float64  `json:"finalScore"`
	Happiness        int      `json:"happiness"`
	CityFunds        int      `json:"cityFunds"`
	SpecialInterest  int      `json:"specialInterest"`
	PersonalProfit   int      `json:"personalProfit"`
	ProfitNarrative  string   `json:"profitNarrative"`
	DecisionsMade    int      `json:"decisionsMade"`
	BuildingsPlaced  int      `json:"buildingsPlaced"`
	Efficiency       int      `json:"efficiency"`
	Zones            []string `json:"zones"`
	Achievements     []string `json:"achievements"`
	PlayTimeSeconds  int      `json:"playTimeSeconds"`
}

func buildSummaryLocked(s *Session) SummaryView {
	placed := 0
	for _, cell := range s.Grid {
		if cell != nil {
			placed++
		}
	}
	playTime := 0
	if !s.CompletedAt.IsZero() {
		playTime = int(s.CompletedAt.Sub(s.StartedAt).Seconds())
	}
	return SummaryView{
		SessionID:        s.ID,
		PlayerName:       s.PlayerName,
		Difficulty:       s.Difficulty,
		Rating:           s.Rating,
		BaseScore:        float64(s.Happiness+s.CityFunds+s.SpecialInterest) / 3,
		TimeBonus:        s.TimeBonus,
		AchievementBonus: len(s.Achievements) * 10,
		FinalScore:       s.FinalScore,
		Happiness:        s.Happiness,
		CityFunds:        s.CityFunds,
		SpecialInterest:  s.SpecialInterest,
		PersonalProfit:   s.PersonalProfit,
		ProfitNarrative:  profitNarrative(s.PersonalProfit),
		DecisionsMade:    len(s.Decisions),
		BuildingsPlaced:  placed,
		Efficiency:       s.Efficiency,
		Zones:            sortedZoneNames(s.DetectedZones),
		Achievements:     s.Achievements,
		PlayTimeSeconds:  playTime,
	}
}
