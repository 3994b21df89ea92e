package pipeline

import (
	"context"
	"fmt"
	"strings"
)

type StageID string

const (
	StageClassify      StageID = "classify"
	StageBugThemes     StageID = "bug_themes"
	StageFeatureThemes StageID = "feature_themes"
	StageCompose       StageID = "compose"
)

// NodeState tracks one stage inside a run.
type NodeState string

const (
	NodeStatePending  NodeState = "pending"
	NodeStateRunning  NodeState = "running"
	NodeStateComplete NodeState = "complete"
	NodeStateFailed   NodeState = "failed"
)

type stage struct {
	id    StageID
	state RunState
	needs []StageID
	run   func(ctx context.Context, r *run) error
}

// graph is a validated stage DAG resolved into waves. Every stage of a wave
// depends only on stages of earlier waves.
type graph struct {
	stages []stage
	waves  [][]stage
}

func newGraph(stages ...stage) (*graph, error) {
	index := make(map[StageID]struct{}, len(stages))
	for i, s := range stages {
		if s.id == "" {
			return nil, fmt.Errorf("stage %d has no id", i)
		}
		if s.run == nil {
			return nil, fmt.Errorf("stage %q has no run func", s.id)
		}
		if _, dup := index[s.id]; dup {
			return nil, fmt.Errorf("duplicate stage %q", s.id)
		}
		index[s.id] = struct{}{}
	}
	for _, s := range stages {
		for _, dep := range s.needs {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("stage %q depends on unknown stage %q", s.id, dep)
			}
		}
	}

	done := make(map[StageID]bool, len(stages))
	var waves [][]stage
	for len(done) < len(stages) {
		var wave []stage
		for _, s := range stages {
			if done[s.id] || !ready(s, done) {
				continue
			}
			wave = append(wave, s)
		}
		if len(wave) == 0 {
			var blocked []string
			for _, s := range stages {
				if !done[s.id] {
					blocked = append(blocked, string(s.id))
				}
			}
			return nil, fmt.Errorf("stage graph has a cycle among %s", strings.Join(blocked, ", "))
		}
		for _, s := range wave {
			done[s.id] = true
		}
		waves = append(waves, wave)
	}
	return &graph{stages: stages, waves: waves}, nil
}

func ready(s stage, done map[StageID]bool) bool {
	for _, dep := range s.needs {
		if !done[dep] {
			return false
		}
	}
	return true
}

// Waves returns the stage ids of each wave in execution order.
func (g *graph) Waves() [][]StageID {
	out := make([][]StageID, len(g.waves))
	for i, wave := range g.waves {
		for _, s := range wave {
			out[i] = append(out[i], s.id)
		}
	}
	return out
}
