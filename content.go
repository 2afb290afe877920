package main

import "fmt"

type DifficultyMode struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	TimerPerScene int    `json:"timerPerScene"`
	StartingFunds int    `json:"startingFunds"`
	MaxRelocation int    `json:"maxRelocations"`
	UndoLimit     int    `json:"undoLimit"`
	Description   string `json:"description"`
}

var difficultyModes = map[string]DifficultyMode{
	"easy": {
		ID:            "easy",
		Name:          "Relaxed Mayor",
		TimerPerScene: 90,
		StartingFunds: 80,
		MaxRelocation: 5,
		UndoLimit:     5,
		Description:   "Take your time and experiment",
	},
	"normal": {
		ID:            "normal",
		Name:          "Working Mayor",
		TimerPerScene: 60,
		StartingFunds: 60,
		MaxRelocation: 3,
		UndoLimit:     3,
		Description:   "Balanced challenge",
	},
	"hard": {
		ID:            "hard",
		Name:          "Under Pressure",
		TimerPerScene: 40,
		StartingFunds: 50,
		MaxRelocation: 1,
		UndoLimit:     1,
		Description:   "Quick decisions, tough choices",
	},
	"expert": {
		ID:            "expert",
		Name:          "Mayor Speedrun",
		TimerPerScene: 25,
		StartingFunds: 40,
		MaxRelocation: 0,
		UndoLimit:     0,
		Description:   "No mistakes allowed!",
	},
}

// StatDelta is a fixed-shape effect record; absent fields stay zero.
type StatDelta struct {
	Happiness       int `json:"happiness"`
	CityFunds       int `json:"cityFunds"`
	SpecialInterest int `json:"specialInterest"`
	PersonalProfit  int `json:"personalProfit"`
}

type BuildingType struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Icon   string    `json:"icon"`
	Cost   int       `json:"cost"`
	Effect string    `json:"effect"`
	Delta  StatDelta `json:"delta"`
}

var buildingCatalog = map[string]BuildingType{
	"house":   {ID: "house", Name: "House", Icon: "🏠", Cost: 10, Effect: "Happiness +5", Delta: StatDelta{Happiness: 5}},
	"shop":    {ID: "shop", Name: "Shop", Icon: "🏪", Cost: 15, Effect: "Funds +5", Delta: StatDelta{CityFunds: 5}},
	"factory": {ID: "factory", Name: "Factory", Icon: "🏭", Cost: 20, Effect: "Funds +10, Happiness -5", Delta: StatDelta{CityFunds: 10, Happiness: -5}},
	"park":    {ID: "park", Name: "Park", Icon: "🌳", Cost: 12, Effect: "Happiness +8", Delta: StatDelta{Happiness: 8}},
	"office":  {ID: "office", Name: "Office", Icon: "🏢", Cost: 18, Effect: "Interest +8", Delta: StatDelta{SpecialInterest: 8}},
}

// AdjacencyRule is either beneficial or harmful, never both. The delta is
// applied once per adjacent matching neighbor.
type AdjacencyRule struct {
	Near    []string
	Delta   StatDelta
	Penalty bool
	Message string
}

var adjacencyRules = map[string]AdjacencyRule{
	"park": {
		Near:    []string{"house", "shop"},
		Delta:   StatDelta{Happiness: 3},
		Message: "Park near homes boosts happiness!",
	},
	"factory": {
		Near:    []string{"house", "park"},
		Delta:   StatDelta{Happiness: -4},
		Penalty: true,
		Message: "Factory pollution upsets nearby residents",
	},
	"shop": {
		Near:    []string{"house", "office"},
		Delta:   StatDelta{CityFunds: 2},
		Message: "Shop has more customers near homes/offices",
	},
	"office": {
		Near:    []string{"shop", "park"},
		Delta:   StatDelta{SpecialInterest: 2},
		Message: "Offices value nearby amenities",
	},
	"house": {
		Near:    []string{"park"},
		Delta:   StatDelta{Happiness: 2},
		Message: "House near park increases quality of life",
	},
}

type Choice struct {
	Text        string    `json:"text"`
	Icon        string    `json:"icon"`
	Effects     StatDelta `json:"effects"`
	Next        string    `json:"next"`
	Consequence string    `json:"consequence,omitempty"`
	Building    string    `json:"building,omitempty"`
	Unlocks     []string  `json:"unlocks,omitempty"`
}

type Scene struct {
	ID        string   `json:"id"`
	Chapter   string   `json:"chapter,omitempty"`
	Title     string   `json:"title"`
	Story     string   `json:"story"`
	Choices   []Choice `json:"choices,omitempty"`
	SelectsAt bool     `json:"isDifficultySelection,omitempty"`
}

const (
	sceneIntro      = "intro"
	sceneDifficulty = "difficulty_selection"
	sceneFirst      = "choice1"
	sceneEnding     = "ending"
)

var sceneGraph = map[string]*Scene{
	sceneIntro: {
		ID:    sceneIntro,
		Title: "Welcome to Tiger Central",
		Story: "Congratulations! You've just won the election to become the mayor of Tiger Central, a city with a population of 300,000. The previous mayor was corrupt, leaving Tiger Central in shambles. The city needs strong leadership to rebuild. There are no perfect solutions, only choices and their outcomes.",
		Choices: []Choice{
			{Text: "Start Your Mayoral Journey", Icon: "🚀", Next: sceneDifficulty},
		},
	},
	sceneDifficulty: {
		ID:        sceneDifficulty,
		Title:     "Choose Your Challenge",
		Story:     "Before you begin your term, select your preferred difficulty level.",
		SelectsAt: true,
	},
	"choice1": {
		ID:      "choice1",
		Chapter: "Chapter 1: Economic Opportunity",
		Title:   "A Factory Proposal",
		Story:   "A large manufacturing company, TigerTech Industries, wants to build a factory in Tiger Central, promising 500 jobs and $10 million to the city. However, factories can bring pollution, traffic, and other concerns. What do you decide?",
		Choices: []Choice{
			{
				Text:        "Accept the factory deal",
				Icon:        "✅",
				Effects:     StatDelta{Happiness: 10, CityFunds: 20, SpecialInterest: 15, PersonalProfit: 5},
				Next:        "choice2A",
				Consequence: "TigerTech Industries is excited to begin construction. Citizens are hopeful about new job opportunities.",
				Building:    "factory",
				Unlocks:     []string{"factory", "house"},
			},
			{
				Text:        "Reject the factory",
				Icon:        "❌",
				Effects:     StatDelta{Happiness: -10, CityFunds: -10, SpecialInterest: -15},
				Next:        "choice2B",
				Consequence: "TigerTech Industries is disappointed. Unemployment remains high, and residents are worried about job prospects.",
				Unlocks:     []string{"park", "house"},
			},
		},
	},
	"choice2A": {
		ID:      "choice2A",
		Chapter: "Chapter 1: Location Matters",
		Title:   "Where to Build?",
		Story:   "Now that you've approved the factory, you need to decide where to place it. Near the river means easy water access but pollution risk; near the suburbs means shorter commutes but more noise and traffic.",
		Choices: []Choice{
			{
				Text:        "Build near the river",
				Icon:        "🏞️",
				Effects:     StatDelta{Happiness: -5, CityFunds: 5, SpecialInterest: 10, PersonalProfit: 3},
				Next:        "choice3A1",
				Consequence: "Construction begins by the river. Environmental groups are concerned about water quality.",
				Unlocks:     []string{"park"},
			},
			{
				Text:        "Build near suburban area",
				Icon:        "🏘️",
				Effects:     StatDelta{Happiness: -15, CityFunds: -5, SpecialInterest: 5, PersonalProfit: 2},
				Next:        "choice3A2",
				Consequence: "Families are displaced to make room for the factory. Homeowners are upset.",
				Building:    "house",
				Unlocks:     []string{"shop"},
			},
		},
	},
	"choice2B": {
		ID:      "choice2B",
		Chapter: "Chapter 1: Unemployment Crisis",
		Title:   "Addressing Joblessness",
		Story:   "Without the factory, unemployment remains high in Tiger Central. People are struggling to make ends meet. What's your approach?",
		Choices: []Choice{
			{
				Text:        "Raise taxes for unemployment benefits",
				Icon:        "💰",
				Effects:     StatDelta{Happiness: -15, CityFunds: 10, SpecialInterest: -5},
				Next:        "choice3B1",
				Consequence: "Unemployment benefits help struggling families, but working citizens feel the tax burden.",
				Unlocks:     []string{"shop"},
			},
			{
				Text:        "Hire people for infrastructure projects",
				Icon:        "🛠️",
				Effects:     StatDelta{Happiness: 10, CityFunds: -15, SpecialInterest: 5},
				Next:        "choice3B2",
				Consequence: "New infrastructure jobs are created. Roads and bridges are being renovated.",
				Building:    "office",
				Unlocks:     []string{"office"},
			},
		},
	},
	"choice3A1": {
		ID:      "choice3A1",
		Chapter: "Chapter 1: Pollution Problems",
		Title:   "Water Contamination",
		Story:   "Chemical waste from manufacturing is contaminating the water supply. The city needs expensive water treatment to keep it safe. Who should pay for this?",
		Choices: []Choice{
			{
				Text:        "Tax TigerTech Industries",
				Icon:        "🏭",
				Effects:     StatDelta{Happiness: 15, CityFunds: 10, SpecialInterest: -10},
				Next:        "choice4A11",
				Consequence: "Citizens appreciate you holding the company accountable.",
			},
			{
				Text:        "Raise water bills for citizens",
				Icon:        "💧",
				Effects:     StatDelta{Happiness: -20, CityFunds: 15, SpecialInterest: 10, PersonalProfit: 5},
				Next:        "choice4A12",
				Consequence: "Citizens are outraged that they're paying for corporate pollution.",
			},
		},
	},
	"choice3A2": {
		ID:      "choice3A2",
		Chapter: "Chapter 1: Suburban Unrest",
		Title:   "Angry Neighbors",
		Story:   "Noise, traffic, and pollution have increased dramatically near the factory. Property values are dropping, and residents are demanding action.",
		Choices: []Choice{
			{
				Text:        "Offer compensation to residents",
				Icon:        "💵",
				Effects:     StatDelta{Happiness: 5, CityFunds: -15, SpecialInterest: -5},
				Next:        "choice4A21",
				Consequence: "Residents receive financial compensation. The city budget is stretched thin.",
			},
			{
				Text:        "Build new homes and relocate",
				Icon:        "🏠",
				Effects:     StatDelta{Happiness: 10, CityFunds: -20},
				Next:        "choice4A22",
				Consequence: "New homes are being constructed. Relocation plans are underway.",
				Building:    "house",
			},
			{
				Text:        "Ignore their complaints",
				Icon:        "🙉",
				Effects:     StatDelta{Happiness: -25, CityFunds: 5, SpecialInterest: 15, PersonalProfit: 10},
				Next:        "choice4A23",
				Consequence: "Residents feel abandoned. Trust in your leadership is declining rapidly.",
			},
		},
	},
	"choice3B1": {
		ID:      "choice3B1",
		Chapter: "Chapter 1: Social Division",
		Title:   "Rising Tensions",
		Story:   "The unemployment tax has created serious social tensions. Employed and unemployed citizens are clashing. Crime is increasing, and neighborhood disputes are common.",
		Choices: []Choice{
			{
				Text:        "Increase surveillance",
				Icon:        "📹",
				Effects:     StatDelta{Happiness: -10, CityFunds: -10, SpecialInterest: 10},
				Next:        "choice4B11",
				Consequence: "More cameras and police patrol the streets. Crime drops, but citizens feel watched.",
			},
			{
				Text:        "Fund job-training programs",
				Icon:        "📚",
				Effects:     StatDelta{Happiness: 15, CityFunds: -15, SpecialInterest: -5},
				Next:        "choice4B12",
				Consequence: "Training programs begin. Unemployed citizens are learning new skills.",
				Building:    "office",
			},
		},
	},
	"choice3B2": {
		ID:      "choice3B2",
		Chapter: "Chapter 1: Safety Concerns",
		Title:   "Workplace Accidents",
		Story:   "The infrastructure projects have created jobs, but workplace accidents and injuries are increasing dramatically. What's your response?",
		Choices: []Choice{
			{
				Text:        "Increase safety regulations",
				Icon:        "⚠️",
				Effects:     StatDelta{Happiness: 10, CityFunds: -10, SpecialInterest: -5},
				Next:        "choice4B21",
				Consequence: "New safety rules are implemented. Workers feel safer, but projects are slowing down.",
			},
			{
				Text:        "Ignore safety concerns",
				Icon:        "⏩",
				Effects:     StatDelta{Happiness: -20, CityFunds: 10, SpecialInterest: 10, PersonalProfit: 5},
				Next:        "choice4B22",
				Consequence: "Projects move forward quickly, but injuries continue to mount.",
			},
		},
	},
	"choice4A11": {
		ID:      "choice4A11",
		Chapter: "Chapter 1: Corporate Backlash",
		Title:   "Labor Dispute",
		Story:   "TigerTech Industries is retaliating against the pollution taxes. They're threatening to cut wages and hours for their 500 employees. Do you intervene?",
		Choices: []Choice{
			{
				Text:        "Implement labor protection laws",
				Icon:        "⚖️",
				Effects:     StatDelta{Happiness: 15, SpecialInterest: -15},
				Next:        sceneEnding,
				Consequence: "Workers are protected, but TigerTech considers leaving Tiger Central.",
			},
			{
				Text:        "Let the company cut wages",
				Icon:        "📉",
				Effects:     StatDelta{Happiness: -15, SpecialInterest: 10, PersonalProfit: 3},
				Next:        sceneEnding,
				Consequence: "Workers face pay cuts. Families struggle.",
			},
		},
	},
	"choice4A12": {
		ID:      "choice4A12",
		Chapter: "Chapter 1: Public Protest",
		Title:   "Citizens Revolt",
		Story:   "Protests have erupted throughout Tiger Central! Citizens are furious that they're paying for water treatment while the polluting company faces no consequences.",
		Choices: []Choice{
			{
				Text:        "Meet with protest leaders",
				Icon:        "🤝",
				Effects:     StatDelta{Happiness: 10, CityFunds: -5, SpecialInterest: -10},
				Next:        sceneEnding,
				Consequence: "You listen to citizens' concerns and promise reform. Trust begins to rebuild.",
			},
			{
				Text:        "Send in police",
				Icon:        "🚔",
				Effects:     StatDelta{Happiness: -25, CityFunds: -5, SpecialInterest: 5},
				Next:        sceneEnding,
				Consequence: "Protests are dispersed by force. Resentment grows.",
			},
		},
	},
	"choice4A21": {
		ID:      "choice4A21",
		Chapter: "Chapter 1: Budget Crisis",
		Title:   "Financial Strain",
		Story:   "Compensating residents has created a budget shortfall. You need to balance the budget somehow.",
		Choices: []Choice{
			{
				Text:        "Raise local taxes",
				Icon:        "📊",
				Effects:     StatDelta{Happiness: -15, CityFunds: 15, SpecialInterest: -5},
				Next:        sceneEnding,
				Consequence: "Tax increases anger citizens, but the budget is stabilized.",
			},
			{
				Text:        "Cut education and parks funding",
				Icon:        "✂️",
				Effects:     StatDelta{Happiness: -20, CityFunds: 15, SpecialInterest: 5},
				Next:        sceneEnding,
				Consequence: "Schools and parks suffer. Families with children are upset.",
			},
		},
	},
	"choice4A22": {
		ID:      "choice4A22",
		Chapter: "Chapter 1: Construction Delays",
		Title:   "Housing Crisis",
		Story:   "The new homes for relocated residents are behind schedule. The contractor is having trouble finding materials and costs are rising.",
		Choices: []Choice{
			{
				Text:        "Rush with cheaper materials",
				Icon:        "⏰",
				Effects:     StatDelta{Happiness: -10, CityFunds: 5, SpecialInterest: 5, PersonalProfit: 3},
				Next:        sceneEnding,
				Consequence: "Homes are completed quickly but quality is poor.",
			},
			{
				Text:        "Spend extra for quality",
				Icon:        "💎",
				Effects:     StatDelta{Happiness: 15, CityFunds: -20, SpecialInterest: -5},
				Next:        sceneEnding,
				Consequence: "Beautiful, safe homes are built. The budget takes a hit.",
				Building:    "house",
			},
		},
	},
	"choice4A23": {
		ID:      "choice4A23",
		Chapter: "Chapter 1: Corporate Overreach",
		Title:   "Illegal Expansion",
		Story:   "TigerTech has taken advantage of your inaction! They've been illegally expanding their operations onto protected land.",
		Choices: []Choice{
			{
				Text:        "Continue ignoring it",
				Icon:        "🙈",
				Effects:     StatDelta{Happiness: -30, SpecialInterest: 20, PersonalProfit: 15},
				Next:        sceneEnding,
				Consequence: "Your inaction becomes a scandal. Citizens have lost all faith.",
			},
			{
				Text:        "Fine the company",
				Icon:        "⚡",
				Effects:     StatDelta{Happiness: 20, CityFunds: 10, SpecialInterest: -20},
				Next:        sceneEnding,
				Consequence: "You finally take a stand. Citizens applaud!",
				Building:    "park",
			},
		},
	},
	"choice4B11": {
		ID:      "choice4B11",
		Chapter: "Chapter 1: Surveillance State",
		Title:   "Privacy Concerns",
		Story:   "Crime has dropped thanks to increased surveillance, but citizens are uneasy. People feel like they're always being watched.",
		Choices: []Choice{
			{
				Text:        "Scale back surveillance",
				Icon:        "🔙",
				Effects:     StatDelta{Happiness: 10, CityFunds: 5, SpecialInterest: -10},
				Next:        sceneEnding,
				Consequence: "Citizens breathe easier with less monitoring.",
			},
			{
				Text:        "Double down",
				Icon:        "🔒",
				Effects:     StatDelta{Happiness: -20, CityFunds: -10, SpecialInterest: 15},
				Next:        sceneEnding,
				Consequence: "Tiger Central becomes a surveillance state.",
			},
		},
	},
	"choice4B12": {
		ID:      "choice4B12",
		Chapter: "Chapter 1: Employment Challenge",
		Title:   "Hiring Hesitation",
		Story:   "The job-training programs are producing qualified workers, but local businesses are hesitant to hire trainees.",
		Choices: []Choice{
			{
				Text:        "Place hiring quotas",
				Icon:        "📋",
				Effects:     StatDelta{Happiness: 5, SpecialInterest: -15},
				Next:        sceneEnding,
				Consequence: "Businesses must hire trainees. Some comply grudgingly.",
			},
			{
				Text:        "Offer tax breaks",
				Icon:        "💸",
				Effects:     StatDelta{Happiness: 10, CityFunds: -10, SpecialInterest: 10},
				Next:        sceneEnding,
				Consequence: "Tax incentives work! Employment rises.",
				Building:    "shop",
			},
		},
	},
	"choice4B21": {
		ID:      "choice4B21",
		Chapter: "Chapter 1: Productivity Crisis",
		Title:   "Slowing Progress",
		Story:   "The new safety regulations are protecting workers, but productivity has dropped. Projects are behind schedule.",
		Choices: []Choice{
			{
				Text:        "Fire underperforming employees",
				Icon:        "❌",
				Effects:     StatDelta{Happiness: -15, CityFunds: 5, SpecialInterest: 10},
				Next:        sceneEnding,
				Consequence: "Projects speed up, but workers live in fear.",
			},
			{
				Text:        "Extend deadlines",
				Icon:        "⏱️",
				Effects:     StatDelta{Happiness: 10, CityFunds: -5, SpecialInterest: -10},
				Next:        sceneEnding,
				Consequence: "Quality and safety improve. Citizens appreciate patience.",
			},
		},
	},
	"choice4B22": {
		ID:      "choice4B22",
		Chapter: "Chapter 1: Legal Trouble",
		Title:   "Lawsuits Mounting",
		Story:   "Injury reports are piling up, and now the lawsuits are coming. Injured workers are demanding compensation.",
		Choices: []Choice{
			{
				Text:        "Pay employees to keep quiet",
				Icon:        "💰",
				Effects:     StatDelta{Happiness: -20, CityFunds: -15, SpecialInterest: 10, PersonalProfit: -5},
				Next:        sceneEnding,
				Consequence: "Hush money works temporarily, but rumors spread.",
			},
			{
				Text:        "Let them bring cases to court",
				Icon:        "⚖️",
				Effects:     StatDelta{Happiness: 5, CityFunds: -20, SpecialInterest: -15},
				Next:        sceneEnding,
				Consequence: "The truth comes out. You take responsibility and promise reform.",
			},
		},
	},
	sceneEnding: {
		ID:    sceneEnding,
		Title: "Your Term Ends",
		Story: "Your first year as mayor of Tiger Central has come to an end. Let's see how you did...",
	},
}

// validateSceneGraph fails loudly on broken content. Run once at startup.
func validateSceneGraph() error {
	for id, scene := range sceneGraph {
		for i, c := range scene.Choices {
			if _, ok := sceneGraph[c.Next]; !ok {
				return fmt.Errorf("scene %s choice %d: next %q does not exist", id, i, c.Next)
			}
			if c.Building != "" {
				if _, ok := buildingCatalog[c.Building]; !ok {
					return fmt.Errorf("scene %s choice %d: unknown building %q", id, i, c.Building)
				}
			}
			for _, u := range c.Unlocks {
				if _, ok := buildingCatalog[u]; !ok {
					return fmt.Errorf("scene %s choice %d: unknown unlock %q", id, i, u)
				}
			}
		}
	}
	return nil
}
