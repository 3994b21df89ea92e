package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"feedbackbot/internal/config"
	"feedbackbot/internal/domain"
	"feedbackbot/internal/integrations/llm"
)

// RunState is the coarse state of a run. The two summarizing states are
// siblings and may be active at the same time.
type RunState string

const (
	StateIdle                RunState = "idle"
	StateClassifying         RunState = "classifying"
	StateSummarizingBugs     RunState = "summarizing_bugs"
	StateSummarizingFeatures RunState = "summarizing_features"
	StateComposing           RunState = "composing"
	StateDone                RunState = "done"
	StateFailed              RunState = "failed"
)

// Event is one transition reported to an Observer. Stage is empty for the
// terminal Done and Failed events.
type Event struct {
	Stage StageID
	State RunState
	Node  NodeState
	Err   error
	At    time.Time
}

// Observer receives run transitions. Calls are serialized.
type Observer func(Event)

type Options struct {
	LLM                 llm.Completer
	Concurrent          bool
	Glossary            *Glossary
	ClassificationGuide string
	Logger              *zap.Logger
}

// Pipeline runs classify, the two summarizers and compose over one sample.
// It holds no per-run state and may serve concurrent runs.
type Pipeline struct {
	graph      *graph
	classifier *Classifier
	bugs       *Summarizer
	features   *Summarizer
	composer   *Composer
	concurrent bool
	log        *zap.Logger
}

func New(opts Options) (*Pipeline, error) {
	if opts.LLM == nil {
		return nil, fmt.Errorf("pipeline: llm completer is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	classifier, err := NewClassifier(opts.LLM, opts.Glossary, opts.ClassificationGuide, log)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p := &Pipeline{
		classifier: classifier,
		bugs:       NewSummarizer(domain.ThemeKindBug, opts.LLM, log),
		features:   NewSummarizer(domain.ThemeKindFeature, opts.LLM, log),
		composer:   NewComposer(opts.LLM, log),
		concurrent: opts.Concurrent,
		log:        log,
	}

	g, err := newGraph(
		stage{id: StageClassify, state: StateClassifying, run: p.classifyStage},
		stage{id: StageBugThemes, state: StateSummarizingBugs, needs: []StageID{StageClassify}, run: p.bugThemesStage},
		stage{id: StageFeatureThemes, state: StateSummarizingFeatures, needs: []StageID{StageClassify}, run: p.featureThemesStage},
		stage{id: StageCompose, state: StateComposing, needs: []StageID{StageBugThemes, StageFeatureThemes}, run: p.composeStage},
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.graph = g
	return p, nil
}

// FromConfig builds a pipeline with the glossary and classification guide
// named in cfg.
func FromConfig(cfg config.Config, completer llm.Completer, log *zap.Logger) (*Pipeline, error) {
	var glossary *Glossary
	if cfg.LLMGlossaryPath != "" {
		g, err := LoadGlossary(cfg.LLMGlossaryPath)
		if err != nil {
			return nil, err
		}
		glossary = g
	}
	return New(Options{
		LLM:                 completer,
		Concurrent:          cfg.ConcurrentSummaries(),
		Glossary:            glossary,
		ClassificationGuide: LoadClassificationGuide(cfg.LLMGuidePath, log),
		Logger:              log,
	})
}

// Waves lists stage ids grouped by execution wave.
func (p *Pipeline) Waves() [][]StageID {
	return p.graph.Waves()
}

// Result holds the artifacts of a finished run. After a failure only Usage
// and Nodes are set.
type Result struct {
	SampleSize    int
	Batch         domain.ClassifiedBatch
	BugThemes     domain.ThemeSummary
	FeatureThemes domain.ThemeSummary
	Report        domain.Report
	Usage         domain.Usage
	Nodes         map[StageID]NodeState
	Elapsed       time.Duration
}

type run struct {
	sample   []domain.FeedbackItem
	batch    domain.ClassifiedBatch
	bugs     domain.ThemeSummary
	features domain.ThemeSummary
	report   domain.Report

	mu    sync.Mutex
	usage domain.Usage
	nodes map[StageID]NodeState

	// observeMu serializes observer calls; mu is never held across one.
	observeMu sync.Mutex
	observe   Observer
}

func (r *run) addUsage(u domain.Usage) {
	r.mu.Lock()
	r.usage.Add(u)
	r.mu.Unlock()
}

func (r *run) transition(ev Event) {
	ev.At = time.Now()
	r.observeMu.Lock()
	defer r.observeMu.Unlock()

	r.mu.Lock()
	if ev.Stage != "" {
		r.nodes[ev.Stage] = ev.Node
	}
	r.mu.Unlock()

	if r.observe != nil {
		r.observe(ev)
	}
}

func (r *run) snapshot() (domain.Usage, map[StageID]NodeState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes := make(map[StageID]NodeState, len(r.nodes))
	for id, state := range r.nodes {
		nodes[id] = state
	}
	return r.usage, nodes
}

// Run executes the stage graph over sample. A wave finishes completely
// before the next one starts. The first stage failure aborts the run and is
// returned as *StageError.
func (p *Pipeline) Run(ctx context.Context, sample []domain.FeedbackItem, observe Observer) (*Result, error) {
	start := time.Now()
	r := &run{
		sample:  sample,
		nodes:   make(map[StageID]NodeState, len(p.graph.stages)),
		observe: observe,
	}
	for _, s := range p.graph.stages {
		r.nodes[s.id] = NodeStatePending
	}
	r.transition(Event{State: StateIdle})

	p.log.Info("pipeline run started", zap.Int("items", len(sample)), zap.Bool("concurrent", p.concurrent))
	for _, wave := range p.graph.waves {
		if err := p.runWave(ctx, r, wave); err != nil {
			r.transition(Event{State: StateFailed, Err: err})
			usage, nodes := r.snapshot()
			p.log.Warn("pipeline run failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
			return &Result{SampleSize: len(sample), Usage: usage, Nodes: nodes, Elapsed: time.Since(start)}, err
		}
	}
	r.transition(Event{State: StateDone})

	usage, nodes := r.snapshot()
	res := &Result{
		SampleSize:    len(sample),
		Batch:         r.batch,
		BugThemes:     r.bugs,
		FeatureThemes: r.features,
		Report:        r.report,
		Usage:         usage,
		Nodes:         nodes,
		Elapsed:       time.Since(start),
	}
	p.log.Info("pipeline run complete",
		zap.Duration("elapsed", res.Elapsed),
		zap.Int64("tokens_in", usage.InputTokens),
		zap.Int64("tokens_out", usage.OutputTokens),
	)
	return res, nil
}

func (p *Pipeline) runWave(ctx context.Context, r *run, wave []stage) error {
	if !p.concurrent || len(wave) == 1 {
		for _, s := range wave {
			if err := p.runStage(ctx, r, s); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range wave {
		g.Go(func() error {
			return p.runStage(gctx, r, s)
		})
	}
	return g.Wait()
}

func (p *Pipeline) runStage(ctx context.Context, r *run, s stage) error {
	if err := ctx.Err(); err != nil {
		r.transition(Event{Stage: s.id, State: s.state, Node: NodeStateFailed, Err: err})
		return &StageError{Stage: s.id, Err: err}
	}
	r.transition(Event{Stage: s.id, State: s.state, Node: NodeStateRunning})

	start := time.Now()
	if err := s.run(ctx, r); err != nil {
		r.transition(Event{Stage: s.id, State: s.state, Node: NodeStateFailed, Err: err})
		p.log.Warn("pipeline stage failed",
			zap.String("stage", string(s.id)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return &StageError{Stage: s.id, Err: err}
	}
	r.transition(Event{Stage: s.id, State: s.state, Node: NodeStateComplete})
	p.log.Debug("pipeline stage complete", zap.String("stage", string(s.id)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Pipeline) classifyStage(ctx context.Context, r *run) error {
	batch, usage, err := p.classifier.Classify(ctx, r.sample)
	r.addUsage(usage)
	if err != nil {
		return err
	}
	r.batch = batch
	return nil
}

func (p *Pipeline) bugThemesStage(ctx context.Context, r *run) error {
	summary, usage, err := p.bugs.Summarize(ctx, r.batch.BugReports)
	r.addUsage(usage)
	if err != nil {
		return err
	}
	r.bugs = summary
	return nil
}

func (p *Pipeline) featureThemesStage(ctx context.Context, r *run) error {
	summary, usage, err := p.features.Summarize(ctx, r.batch.FeatureRequests)
	r.addUsage(usage)
	if err != nil {
		return err
	}
	r.features = summary
	return nil
}

func (p *Pipeline) composeStage(ctx context.Context, r *run) error {
	rep, usage, err := p.composer.Compose(ctx, r.bugs, r.features)
	r.addUsage(usage)
	if err != nil {
		return err
	}
	r.report = rep
	return nil
}
