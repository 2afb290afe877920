package main

import "testing"

func TestValidateSceneGraph(t *testing.T) {
	if err := validateSceneGraph(); err != nil {
		t.Fatalf("validateSceneGraph error: %v", err)
	}
}

func TestEndingReachableFromEveryScene(t *testing.T) {
	// Every choice path from the first decision must terminate at the ending.
	visited := map[string]bool{}
	queue := []string{sceneFirst}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		scene := sceneGraph[id]
		if scene == nil {
			t.Fatalf("scene %q missing from graph", id)
		}
		if id != sceneEnding && len(scene.Choices) == 0 {
			t.Fatalf("scene %q is a dead end with no choices", id)
		}
		for _, c := range scene.Choices {
			queue = append(queue, c.Next)
		}
	}
	if !visited[sceneEnding] {
		t.Fatalf("ending not reachable from %s", sceneFirst)
	}
}

func TestDifficultyModes(t *testing.T) {
	for _, id := range []string{"easy", "normal", "hard", "expert"} {
		mode, ok := difficultyModes[id]
		if !ok {
			t.Fatalf("missing difficulty %q", id)
		}
		if mode.TimerPerScene < minTimerSeconds {
			t.Fatalf("difficulty %q timer %d below floor", id, mode.TimerPerScene)
		}
		if mode.StartingFunds <= 0 {
			t.Fatalf("difficulty %q starting funds %d", id, mode.StartingFunds)
		}
	}
	if difficultyModes["easy"].TimerPerScene <= difficultyModes["expert"].TimerPerScene {
		t.Fatalf("easy should allow more time than expert")
	}
}

func TestAdjacencyRulesReferenceKnownBuildings(t *testing.T) {
	for id, rule := range adjacencyRules {
		if _, ok := buildingCatalog[id]; !ok {
			t.Fatalf("adjacency rule for unknown building %q", id)
		}
		for _, near := range rule.Near {
			if _, ok := buildingCatalog[near]; !ok {
				t.Fatalf("rule %q targets unknown building %q", id, near)
			}
		}
	}
}
