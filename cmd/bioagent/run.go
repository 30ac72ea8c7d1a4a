package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/bioagent-ai/bioagent/internal/agent"
	"github.com/bioagent-ai/bioagent/internal/agent/providers"
	"github.com/bioagent-ai/bioagent/internal/config"
	"github.com/bioagent-ai/bioagent/internal/coordinator"
	"github.com/bioagent-ai/bioagent/internal/ingest"
	"github.com/bioagent-ai/bioagent/internal/literature"
	"github.com/bioagent-ai/bioagent/internal/observability"
	"github.com/bioagent-ai/bioagent/internal/sessions"
	"github.com/bioagent-ai/bioagent/internal/streaming"
	"github.com/bioagent-ai/bioagent/internal/tools/files"
	ingesttool "github.com/bioagent-ai/bioagent/internal/tools/ingest"
	"github.com/bioagent-ai/bioagent/internal/tools/litsearch"
	"github.com/bioagent-ai/bioagent/internal/tools/pipeline"
	"github.com/bioagent-ai/bioagent/pkg/models"
)

// cliOptions collects the flags set on the root command.
type cliOptions struct {
	ConfigPath  string
	Query       string
	Complex     string
	Workspace   string
	Model       string
	Quiet       bool
	SaveSession string
	LoadSession string
}

// builtinSpecialists is the named roster coordinator-routed turns dispatch
// across: pipeline, stats, literature, research, and QC. Each specialist's
// tool allowlist can be narrowed per-deployment through
// config.Config.Specialists.
var builtinSpecialists = []coordinator.SpecialistDefinition{
	{
		ID:          "pipeline",
		Name:        "Pipeline",
		Description: "runs and interprets bioinformatics workflows (alignment, variant calling, QC tools)",
		Keywords:    []string{"pipeline", "workflow", "align", "bam", "vcf", "fastq", "nextflow", "snakemake"},
		SystemPrompt: "You are the pipeline specialist. You run and interpret bioinformatics " +
			"workflow steps against files in the workspace, reporting concrete metrics and flags.",
	},
	{
		ID:          "stats",
		Name:        "Statistics",
		Description: "performs statistical analysis over tabular and quantitative results",
		Keywords:    []string{"stat", "p-value", "correlation", "regression", "test", "distribution", "significance"},
		SystemPrompt: "You are the statistics specialist. You analyze quantitative results, choose " +
			"appropriate statistical tests, and report effect sizes and significance honestly.",
	},
	{
		ID:          "literature",
		Name:        "Literature",
		Description: "searches and synthesizes biomedical literature across sources",
		Keywords:    []string{"paper", "literature", "cite", "citation", "pubmed", "study", "publication"},
		SystemPrompt: "You are the literature specialist. You search biomedical literature across " +
			"sources, deduplicate results, and synthesize findings with citations.",
	},
	{
		ID:          "research",
		Name:        "Research",
		Description: "general bioinformatics research and synthesis, the fallback specialist",
		Keywords:    []string{},
		SystemPrompt: "You are the general research specialist. You handle bioinformatics " +
			"questions that do not clearly belong to a single narrower specialist.",
		IsGeneral: true,
	},
	{
		ID:          "qc",
		Name:        "QC",
		Description: "reviews analyses for statistical validity and missing quality-control steps",
		Keywords:    []string{"quality control", "qc", "caveat", "validity", "review"},
		SystemPrompt: "You are the QC specialist. You review an analysis for statistical validity, " +
			"missing QC steps, overstated conclusions, and missing caveats.",
	},
}

// runCLI loads configuration, builds the agent runtime, and dispatches to
// one-shot query/complex mode or the interactive REPL depending on which
// flags were set.
func runCLI(ctx context.Context, opts cliOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(opts.Workspace) != "" {
		cfg.Workspace.Dir = opts.Workspace
	}
	if strings.TrimSpace(opts.Model) != "" {
		cfg.Model.Default = opts.Model
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey:       apiKey,
		DefaultModel: cfg.Model.Default,
		MaxRetries:   3,
	})
	if err != nil {
		return fmt.Errorf("build model provider: %w", err)
	}

	store := sessions.NewMemoryStore()
	registry := agent.NewToolRegistry()
	registerCoreTools(registry, cfg)

	hub := streaming.NewHub(streaming.DefaultConfig())

	session, err := resolveSession(ctx, store, opts)
	if err != nil {
		return err
	}
	defer func() {
		if strings.TrimSpace(opts.SaveSession) != "" {
			if err := saveSessionTranscript(ctx, store, session.ID, opts.SaveSession); err != nil {
				logger.Error(ctx, "save session failed", "error", err)
			}
		}
	}()

	printer := newChunkPrinter(os.Stdout, opts.Quiet)

	switch {
	case strings.TrimSpace(opts.Complex) != "":
		coord := buildCoordinator(provider, store, registry, cfg, hub)
		msg := &models.Message{ID: uuid.NewString(), SessionID: session.ID, Role: models.RoleUser, Content: opts.Complex}
		return runStreamedOneShot(ctx, hub, msg, printer, func() (<-chan *agent.ResponseChunk, error) {
			return coord.Run(ctx, session, msg)
		})

	case strings.TrimSpace(opts.Query) != "":
		runtime := buildRuntime(provider, store, registry, cfg)
		return runOneShot(ctx, func() (<-chan *agent.ResponseChunk, error) {
			return runtime.Process(ctx, session, &models.Message{ID: uuid.NewString(), SessionID: session.ID, Role: models.RoleUser, Content: opts.Query})
		}, printer)

	default:
		runtime := buildRuntime(provider, store, registry, cfg)
		coord := buildCoordinator(provider, store, registry, cfg, hub)
		return runREPL(ctx, runtime, coord, hub, session, printer)
	}
}

// buildRuntime wires the plain one-specialist agent runtime used for
// --query and the REPL's default (non --complex) turns.
func buildRuntime(provider agent.LLMProvider, store sessions.Store, registry *agent.ToolRegistry, cfg *config.Config) *agent.AgenticRuntime {
	loopCfg := &agent.LoopConfig{
		MaxIterations: cfg.Limits.MaxRounds,
		MaxTokens:     cfg.Limits.MaxTokens,
	}
	runtime := agent.NewAgenticRuntime(provider, store, loopCfg)
	runtime.SetDefaultModel(cfg.Model.Default)
	for _, tool := range registry.AsLLMTools() {
		runtime.RegisterTool(tool)
	}
	return runtime
}

// buildCoordinator wires a coordinator over the builtin specialist roster,
// one AgenticLoop per specialist scoped to its tool allowlist and system
// prompt, with config.Specialists able to narrow allowlists per deployment.
// hub, if non-nil, is installed so each turn's routing, specialist, and tool
// events are published for SSE-style subscribers.
func buildCoordinator(provider agent.LLMProvider, store sessions.Store, registry *agent.ToolRegistry, cfg *config.Config, hub *streaming.Hub) *coordinator.Coordinator {
	router := coordinator.NewRouter(coordinator.DefaultRouterConfig())
	coordCfg := coordinator.DefaultConfig()
	coordCfg.ParallelSpecialists = cfg.Features.ParallelSpecialistsEnabled()
	coordCfg.EnableQC = true
	coord := coordinator.NewCoordinator(router, coordCfg)
	if hub != nil {
		coord.SetHub(hub)
	}

	var qcRunner coordinator.SpecialistRunner
	for _, spec := range builtinSpecialists {
		spec := spec
		if tune, ok := cfg.Specialists[spec.ID]; ok && len(tune.ToolAllowlist) > 0 {
			spec.ToolAllowlist = tune.ToolAllowlist
		}
		router.Register(spec)

		loopCfg := &agent.LoopConfig{
			MaxIterations: cfg.Limits.MaxRounds,
			MaxTokens:     cfg.Limits.MaxTokens,
			AllowedTools:  spec.ToolAllowlist,
		}
		loop := agent.NewAgenticLoop(provider, registry, store, loopCfg)
		loop.SetDefaultModel(cfg.Model.Specialist)
		loop.SetDefaultSystem(spec.SystemPrompt)
		coord.RegisterSpecialist(spec.ID, loop)

		if spec.ID == "qc" {
			qcLoop := agent.NewAgenticLoop(provider, registry, store, loopCfg)
			qcLoop.SetDefaultModel(cfg.Model.QC)
			qcLoop.SetDefaultSystem(spec.SystemPrompt)
			qcRunner = qcLoop
		}
	}
	if qcRunner != nil {
		coord.SetQCReviewer(coordinator.NewQCReviewer(qcRunner, coordinator.DefaultQCChecklist))
	}

	return coord
}

// registerCoreTools registers the always-available tools: file
// read/write/edit/patch scoped to the workspace, a safety-checked command
// runner for bioinformatics CLI tools, literature search and citation-graph
// lookup, and file ingestion/profiling. None of builtinSpecialists sets an
// explicit ToolAllowlist, so every tool registered here is reachable by
// every specialist unless config.Config.Specialists narrows it.
func registerCoreTools(registry *agent.ToolRegistry, cfg *config.Config) {
	workspace := cfg.Workspace.Dir
	filesCfg := files.Config{Workspace: workspace}
	registry.Register(files.NewReadTool(filesCfg))
	registry.Register(files.NewWriteTool(filesCfg))
	registry.Register(files.NewEditTool(filesCfg))
	registry.Register(files.NewApplyPatchTool(filesCfg))

	registry.Register(pipeline.NewRunCommandTool(pipeline.Config{Workspace: workspace}))

	orch := literature.NewOrchestrator(literature.OrchestratorConfig{
		NCBIAPIKey: cfg.Literature.NCBIAPIKey,
		NCBIEmail:  cfg.Literature.NCBIEmail,
		S2APIKey:   cfg.Literature.S2APIKey,
	})
	registry.Register(litsearch.NewSearchTool(orch))
	registry.Register(litsearch.NewCitationNetworkTool(orch))

	if fetcher, err := ingest.NewFetcher(workspace, nil); err == nil {
		registry.Register(ingesttool.NewTool(ingest.NewIngestor(workspace, fetcher)))
	}
}

func resolveSession(ctx context.Context, store sessions.Store, opts cliOptions) (*models.Session, error) {
	if strings.TrimSpace(opts.LoadSession) != "" {
		return loadSessionTranscript(ctx, store, opts.LoadSession)
	}
	return store.GetOrCreate(ctx, "cli", "bioagent", opts.Workspace)
}

// runOneShot runs a single turn to completion, printing streamed chunks,
// and returns any error the run itself reported via the chunk stream.
func runOneShot(ctx context.Context, start func() (<-chan *agent.ResponseChunk, error), printer *chunkPrinter) error {
	chunks, err := start()
	if err != nil {
		return err
	}
	return printer.drain(chunks)
}

// runStreamedOneShot runs a single coordinator turn, additionally
// subscribing to the turn's hub events (if hub is non-nil) and echoing them
// to stderr prefixed "[stream]" while the main chunk channel drains to
// stdout. This exercises the same transport a remote SSE client would use
// via streaming.WriteSSE, in-process.
func runStreamedOneShot(ctx context.Context, hub *streaming.Hub, msg *models.Message, printer *chunkPrinter, start func() (<-chan *agent.ResponseChunk, error)) error {
	chunks, err := start()
	if err != nil {
		return err
	}

	if hub != nil {
		if sub, unsubscribe, err := hub.Subscribe(msg.ID); err == nil {
			done := make(chan struct{})
			go func() {
				defer close(done)
				drainStreamEvents(sub, os.Stderr)
			}()
			defer func() {
				unsubscribe()
				<-done
			}()
		}
	}

	return printer.drain(chunks)
}

// drainStreamEvents reads a turn's subscriber channel until a terminal
// (done/disconnect) event, echoing each event to out.
func drainStreamEvents(ch <-chan streaming.StreamEvent, out io.Writer) {
	for e := range ch {
		fmt.Fprintf(out, "[stream] %s\n", e.Type)
		if e.Type == streaming.EventDone || e.Type == streaming.EventDisconnect {
			return
		}
	}
}

// runREPL reads queries from stdin until EOF or an empty line, running each
// through the plain runtime by default and through the coordinator when the
// line is prefixed with "/complex ".
func runREPL(ctx context.Context, runtime *agent.AgenticRuntime, coord *coordinator.Coordinator, hub *streaming.Hub, session *models.Session, printer *chunkPrinter) error {
	fmt.Fprintln(os.Stdout, "bioagent interactive session. Prefix a line with /complex to route through the coordinator. Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(os.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		msg := &models.Message{ID: uuid.NewString(), SessionID: session.ID, Role: models.RoleUser, Content: line}
		if rest, ok := strings.CutPrefix(line, "/complex "); ok {
			msg.Content = rest
			if err := runStreamedOneShot(ctx, hub, msg, printer, func() (<-chan *agent.ResponseChunk, error) {
				return coord.Run(ctx, session, msg)
			}); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			continue
		}

		chunks, err := runtime.Process(ctx, session, msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if err := printer.drain(chunks); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// chunkPrinter renders a ResponseChunk stream to a writer. In quiet mode
// only the final text is printed; otherwise thinking and tool events are
// echoed too, giving visibility into routing decisions and specialist
// progress as they stream in.
type chunkPrinter struct {
	out   io.Writer
	quiet bool
}

func newChunkPrinter(out io.Writer, quiet bool) *chunkPrinter {
	return &chunkPrinter{out: out, quiet: quiet}
}

func (p *chunkPrinter) drain(chunks <-chan *agent.ResponseChunk) error {
	var runErr error
	inThinking := false
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			runErr = chunk.Error
			continue
		}
		if !p.quiet {
			if chunk.ThinkingStart {
				inThinking = true
				fmt.Fprint(p.out, "[thinking] ")
			}
			if chunk.Thinking != "" {
				fmt.Fprint(p.out, chunk.Thinking)
			}
			if chunk.ThinkingEnd {
				inThinking = false
				fmt.Fprintln(p.out)
			}
			if chunk.ToolEvent != nil && chunk.ToolEvent.ToolName != "" {
				fmt.Fprintf(p.out, "[tool] %s\n", chunk.ToolEvent.ToolName)
			}
		}
		if chunk.Text != "" {
			if inThinking {
				fmt.Fprintln(p.out)
				inThinking = false
			}
			fmt.Fprint(p.out, chunk.Text)
		}
	}
	fmt.Fprintln(p.out)
	return runErr
}

// sessionSnapshot is the on-disk shape written by --save-session and read
// back by --load-session: just enough to resume a transcript, not the full
// persisted-state layout a server-backed session store would use.
type sessionSnapshot struct {
	Session  *models.Session   `json:"session"`
	Messages []*models.Message `json:"messages"`
}

func saveSessionTranscript(ctx context.Context, store sessions.Store, sessionID, path string) error {
	session, err := store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session for save: %w", err)
	}
	history, err := store.GetHistory(ctx, sessionID, 0)
	if err != nil {
		return fmt.Errorf("load history for save: %w", err)
	}
	snapshot := sessionSnapshot{Session: session, Messages: history}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func loadSessionTranscript(ctx context.Context, store sessions.Store, path string) (*models.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session snapshot: %w", err)
	}
	var snapshot sessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	if snapshot.Session == nil {
		return nil, fmt.Errorf("session snapshot %s has no session", path)
	}
	if err := store.Create(ctx, snapshot.Session); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	for _, msg := range snapshot.Messages {
		if err := store.AppendMessage(ctx, snapshot.Session.ID, msg); err != nil {
			return nil, fmt.Errorf("restore message: %w", err)
		}
	}
	return snapshot.Session, nil
}
