// Package pipeline implements C11 (Pipeline Orchestrator): the single
// per-request flow that wires C1-C10 together, grounded on
// original_source/pipeline/rag_pipeline.py and on the teacher's
// internal/service layer for the general shape of a service struct that
// depends on several lower-level clients and returns one response DTO.
package pipeline

import (
	"context"
	"time"

	"bvrag/internal/config"
	"bvrag/internal/generation"
	"bvrag/internal/knowledge"
	"bvrag/internal/memory"
	"bvrag/internal/query"
	"bvrag/internal/retrieval"
	"bvrag/internal/utility"
	"bvrag/pkg/llm"
	"bvrag/pkg/log"
	"bvrag/pkg/tasks"
)

// utilityProducer is satisfied by pkg/kafka.ProduceUtilityUpdate; narrowed to
// a function type so the orchestrator doesn't import pkg/kafka's package
// state directly and stays unit-testable with a stub.
type utilityProducer func(ctx context.Context, event tasks.UtilityUpdateEvent)

// Orchestrator wires C4/C5/C7/C8/C9/C10 into the single request flow
// described in spec.md §4.11.
type Orchestrator struct {
	sessions     memory.Store
	llmClient    llm.Client
	memCfg       config.MemoryConfig
	retriever    *retrieval.HybridRetriever
	knowledgeIdx *knowledge.Index
	generator    *generation.Generator
	produceUtil  utilityProducer
}

// New constructs C11. produceUtil is typically kafka.ProduceUtilityUpdate;
// passing nil disables the fire-and-forget utility update (e.g. in tests).
func New(
	sessions memory.Store,
	llmClient llm.Client,
	memCfg config.MemoryConfig,
	retriever *retrieval.HybridRetriever,
	knowledgeIdx *knowledge.Index,
	generator *generation.Generator,
	produceUtil utilityProducer,
) *Orchestrator {
	return &Orchestrator{
		sessions:     sessions,
		llmClient:    llmClient,
		memCfg:       memCfg,
		retriever:    retriever,
		knowledgeIdx: knowledgeIdx,
		generator:    generator,
		produceUtil:  produceUtil,
	}
}

// Request is C11's input (spec.md §6 POST /api/v1/voice/text-query and
// /api/v1/voice/query bodies, after STT has already run for the voice path).
type Request struct {
	SessionID string
	Query     string
	InputMode string // "text" | "voice"
}

// Response is C11's output, the user-visible answer envelope (spec.md §6).
type Response struct {
	SessionID     string                `json:"session_id"`
	EnhancedQuery string                `json:"enhanced_query"`
	Answer        string                `json:"answer"`
	Citations     []generation.Citation `json:"citations"`
	Confidence    string                `json:"confidence"`
	ModelUsed     string                `json:"model_used"`
	Sources       []generation.Source   `json:"sources"`
	TimingMS      map[string]int64      `json:"timing_ms"`
}

// utilityTimeout bounds the best-effort Kafka publish at step 9 (spec.md
// §4.11: "This step is best-effort; its failure does not affect the
// response").
const utilityTimeout = 2 * time.Second

// Handle runs the full ten-step request flow (spec.md §4.11).
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Response, error) {
	timing := map[string]int64{}
	mark := func(step string, start time.Time) {
		timing[step] = time.Since(start).Milliseconds()
	}

	// Step 1: load or create session.
	t0 := time.Now()
	session, err := o.sessions.GetOrCreate(ctx, req.SessionID)
	mark("session_load", t0)
	if err != nil {
		return nil, err
	}

	// Step 2: build context + enhanced query (coreference-resolved).
	t0 = time.Now()
	convTurns, coreferenceQuery := memory.BuildLLMContext(ctx, o.llmClient, o.memCfg, session, req.Query)
	mark("context_build", t0)

	// Step 3: classify.
	t0 = time.Now()
	classification := query.Classify(coreferenceQuery)
	mark("classify", t0)

	// Step 4: enhance — may further expand the coreference-rewritten query.
	t0 = time.Now()
	enhancement := query.Enhance(coreferenceQuery)
	queryCategory := string(utility.Categorize(coreferenceQuery, enhancement.MatchedTerms))
	mark("enhance", t0)

	// Step 5: retrieve, top_k from C4 (dynamic top-k is applied inside C7).
	t0 = time.Now()
	result, err := o.retriever.Retrieve(ctx, retrieval.RetrieveInput{
		EnhancedQuery:       enhancement.EnhancedQuery,
		TopK:                classification.TopK,
		Strategy:            classification.RetrievalStrategy,
		QueryCategory:       queryCategory,
		ExplicitIdentifiers: enhancement.RegulationHints,
	})
	mark("retrieve", t0)
	if err != nil {
		return nil, err
	}

	// Step 6: practical-knowledge lookup.
	t0 = time.Now()
	var practicalContext string
	if o.knowledgeIdx != nil {
		entries := o.knowledgeIdx.Query(coreferenceQuery, enhancement.MatchedTerms, enhancement.RegulationHints)
		practicalContext = knowledge.FormatForLLM(entries)
	}
	mark("knowledge_lookup", t0)

	// Step 7: generate. On GenerationUnavailable, retry once with the
	// alternate model tier before surfacing a structured error (spec.md
	// §4.11/§7 partial-failure policy).
	t0 = time.Now()
	genInput := generation.Input{
		Query:             req.Query,
		EnhancedQuery:     enhancement.EnhancedQuery,
		ConversationTurns: convTurns,
		Classification:    classification,
		Candidates:        result.Candidates,
		PracticalContext:  practicalContext,
	}
	genOut, err := o.generator.Generate(ctx, genInput)
	if err != nil {
		alternate := generation.AlternateTier(o.generator.ResolveTier(genInput))
		genInput.ForceTier = alternate
		genOut, err = o.generator.Generate(ctx, genInput)
	}
	mark("generate", t0)
	if err != nil {
		return nil, err
	}

	// Step 8: append user then assistant turns, with retrieved/cited regulation
	// breadcrumbs and the generation's confidence/enhanced-query annotations.
	t0 = time.Now()
	memory.AppendUserTurn(session, req.Query, req.InputMode)
	memory.AppendAssistantTurn(session, genOut.AnswerText, req.InputMode, memory.TurnMetadata{
		RetrievedRegulations: breadcrumbs(result.Candidates),
		Citations:            citationStrings(genOut.Citations),
		Confidence:           genOut.Confidence,
		EnhancedQuery:        enhancement.EnhancedQuery,
		QueryCategory:        queryCategory,
	})
	if err := o.sessions.Save(ctx, session); err != nil {
		log.Errorf("[PipelineOrchestrator] 会话保存失败: %v", err)
	}
	mark("session_save", t0)

	// Step 9: fire-and-forget utility update; never affects the response.
	if o.produceUtil != nil {
		go o.fireUtilityUpdate(result.Candidates, genOut, queryCategory)
	}

	// Step 10: return the response envelope.
	return &Response{
		SessionID:     session.SessionID,
		EnhancedQuery: enhancement.EnhancedQuery,
		Answer:        genOut.AnswerText,
		Citations:     genOut.Citations,
		Confidence:    genOut.Confidence,
		ModelUsed:     genOut.ModelUsed,
		Sources:       genOut.Sources,
		TimingMS:      timing,
	}, nil
}

// fireUtilityUpdate runs on its own bounded timeout, decoupled from the
// request context so a caller cancelling/returning doesn't cancel the
// publish (spec.md §4.11 step 9).
func (o *Orchestrator) fireUtilityUpdate(candidates []retrieval.Candidate, genOut *generation.Output, category string) {
	ctx, cancel := context.WithTimeout(context.Background(), utilityTimeout)
	defer cancel()

	retrievedIDs := make([]uint, 0, len(candidates))
	for _, c := range candidates {
		retrievedIDs = append(retrievedIDs, c.ChunkID)
	}

	citedIDs := make([]uint, 0)
	for _, s := range genOut.Sources {
		for _, c := range genOut.Citations {
			if generation.CitationMatchesBreadcrumb(c.Citation, s.Breadcrumb) {
				citedIDs = append(citedIDs, s.ChunkID)
				break
			}
		}
	}

	o.produceUtil(ctx, tasks.UtilityUpdateEvent{
		RetrievedChunkIDs: retrievedIDs,
		CitedChunkIDs:     citedIDs,
		Confidence:        genOut.Confidence,
		QueryCategory:     category,
		IsRefusal:         len(genOut.Citations) == 0 && genOut.Confidence == "low",
	})
}

func breadcrumbs(candidates []retrieval.Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.BreadcrumbPath)
	}
	return out
}

func citationStrings(citations []generation.Citation) []string {
	out := make([]string, 0, len(citations))
	for _, c := range citations {
		out = append(out, c.Citation)
	}
	return out
}
