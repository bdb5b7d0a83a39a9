// Package rag implements the retrieval-augmented-generation query engine
// behind the assistant endpoint.
//
// A request flows through: intent detection → (catalog/schema/entity
// short-circuits) or (query rewriting → batched embedding → per-embedding
// vector search with fallback → deduplication → relaxation → MMR selection →
// context assembly → answer generation). Token usage is accumulated across
// every model call within the request and surfaced with a derived cost
// estimate. All state is request-scoped; nothing survives across invocations.
package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/digitizerx/digitizerx/internal/ai"
)

// Options are the engine tunables, constructed once at startup from config.
type Options struct {
	ChatModel      string
	RewriteModel   string
	EmbeddingModel string
	Temperature    float64
	Pricing        Pricing

	// MMRLambda weighs relevance against redundancy in selection.
	// Empirically 0.75; kept configurable.
	MMRLambda float64

	// RelaxDelta is how far the similarity floor drops when the first pass
	// yields too few candidates. Empirically 0.1.
	RelaxDelta float64
}

// Engine handles assistant queries. Safe for concurrent use: every request
// allocates its own accumulator and intermediate state.
type Engine struct {
	provider ai.Provider
	searcher Searcher
	procs    Procedures
	opts     Options
	logger   *slog.Logger
}

// New creates an Engine. Zero-valued tunables fall back to their defaults.
func New(provider ai.Provider, searcher Searcher, procs Procedures, opts Options, logger *slog.Logger) *Engine {
	if opts.MMRLambda == 0 {
		opts.MMRLambda = 0.75
	}
	if opts.RelaxDelta == 0 {
		opts.RelaxDelta = 0.1
	}
	if opts.RewriteModel == "" {
		opts.RewriteModel = opts.ChatModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: provider,
		searcher: searcher,
		procs:    procs,
		opts:     opts,
		logger:   logger,
	}
}

// System prompts for the three completion call sites.
const (
	rewriteSystemPrompt = "You rewrite search queries. Given a user question, produce up to 3 alternative " +
		"short search queries that could retrieve relevant documentation. One query per line, no numbering, " +
		"no commentary."

	answerSystemPrompt = "You are the DigitizerX assistant. Answer ONLY from the provided context blocks. " +
		"Cite the blocks you used as [#i]. If the context does not contain the answer, say the information " +
		"was not found in the indexed documents. Do not invent facts."

	genSystemPrompt = "You are the DigitizerX assistant for manufacturing operations: inventory and spare " +
		"parts, gate passes, material inward, weighing-balance calibration, and preventive maintenance. " +
		"Answer concisely and practically."

	opsSystemPrompt = "You are the DigitizerX operations assistant. Help plant personnel with equipment, " +
		"maintenance and inventory questions. Be specific and action-oriented."
)

// Handle processes one request to completion. Any error returned here maps
// to the endpoint's single top-level error response.
func (e *Engine) Handle(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is empty")
	}

	usage := &Usage{} // fresh per request

	switch req.Mode {
	case ModeGen:
		return e.handleGen(ctx, req, usage)
	case ModeOps:
		return e.handleOps(ctx, req, usage)
	case "", ModeRAG:
		// fall through to intent classification
	default:
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}

	switch detectIntent(req.Query) {
	case intentCatalog:
		return e.handleCatalog(ctx, usage)
	case intentSchema:
		return e.handleSchema(ctx, req, usage)
	case intentEntity:
		return e.handleEntity(ctx, req, usage)
	default:
		return e.handleRetrieval(ctx, req, usage)
	}
}

func (e *Engine) handleGen(ctx context.Context, req Request, usage *Usage) (*Response, error) {
	comp, err := e.provider.Complete(ctx, ai.CompletionRequest{
		Model:       e.opts.ChatModel,
		System:      genSystemPrompt,
		Prompt:      req.Query,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}
	usage.AddChat(comp.Usage)

	return e.respond(ModeGen, comp.Text, []Source{}, usage), nil
}

func (e *Engine) handleOps(ctx context.Context, req Request, usage *Usage) (*Response, error) {
	prompt := req.Query
	if req.Equipment != "" {
		prompt += "\n\nEquipment context:\n" + req.Equipment
	}

	comp, err := e.provider.Complete(ctx, ai.CompletionRequest{
		Model:       e.opts.ChatModel,
		System:      opsSystemPrompt,
		Prompt:      prompt,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}
	usage.AddChat(comp.Usage)

	return e.respond(ModeOps, comp.Text, []Source{}, usage), nil
}

func (e *Engine) handleCatalog(ctx context.Context, usage *Usage) (*Response, error) {
	text, err := e.procs.CatalogText(ctx)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = "No module catalog has been published yet. Ask an administrator to load the catalog document."
	}
	resp := &Response{Kind: "catalog", Text: text, Usage: *usage}
	resp.Cost = usage.Estimate(e.opts.Pricing)
	return resp, nil
}

func (e *Engine) handleSchema(ctx context.Context, req Request, usage *Usage) (*Response, error) {
	rows, err := e.procs.Schema(ctx, tableHint(req.Query), req.Schemas)
	if err != nil {
		return nil, err
	}

	resp := &Response{Kind: "schema", Schema: rows, Usage: *usage}
	if len(rows) == 0 {
		resp.Text = "No matching tables or columns found."
	}
	resp.Cost = usage.Estimate(e.opts.Pricing)
	return resp, nil
}

func (e *Engine) handleEntity(ctx context.Context, req Request, usage *Usage) (*Response, error) {
	entity := deriveEntity(req.Query, req.Entity)
	key := deriveKey(req.Query, req.Key)

	if entity != "" && key != "" {
		rows, err := e.procs.EntityLookup(ctx, entity, key)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			resp := &Response{Kind: "entity", Rows: rows, Usage: *usage}
			resp.Cost = usage.Estimate(e.opts.Pricing)
			return resp, nil
		}
	}

	// Nothing matched directly; try the "how many X are open" form.
	if countEntity, state, ok := matchCounts(req.Query); ok {
		n, err := e.procs.Counts(ctx, countEntity, state)
		if err != nil {
			return nil, err
		}
		resp := &Response{Kind: "entity", Count: &n, Usage: *usage}
		resp.Text = fmt.Sprintf("%d %s are %s.", n, strings.ReplaceAll(countEntity, "_", " "), state)
		resp.Cost = usage.Estimate(e.opts.Pricing)
		return resp, nil
	}

	resp := &Response{
		Kind:  "entity",
		Text:  "No matching record found. Try quoting the exact code or name.",
		Usage: *usage,
	}
	resp.Cost = usage.Estimate(e.opts.Pricing)
	return resp, nil
}

// handleRetrieval runs the full retrieval pipeline.
func (e *Engine) handleRetrieval(ctx context.Context, req Request, usage *Usage) (*Response, error) {
	topK := clampTopK(req.TopK)
	minSim := clampMinSim(req.MinSim)

	// 1. Query rewriting.
	rewrites, err := e.rewriteQuery(ctx, req.Query, usage)
	if err != nil {
		return nil, err
	}

	// 2. Batched embedding of the original query plus all rewrites.
	inputs := append([]string{req.Query}, rewrites...)
	emb, err := e.provider.Embed(ctx, ai.EmbeddingRequest{
		Model:  e.opts.EmbeddingModel,
		Inputs: inputs,
	})
	if err != nil {
		return nil, err
	}
	usage.AddEmbedding(emb.Usage)

	// 3-4. Per-embedding search with dedup across rewrites.
	searchK := max(topK*2, 24)
	seen := make(map[string]struct{})
	var candidates []DocRow
	for _, vec := range emb.Vectors {
		rows, err := e.search(ctx, vec, searchK, minSim, req.Module, req.Submodule)
		if err != nil {
			return nil, err
		}
		candidates = mergeCandidates(candidates, rows, seen, minSim)
	}

	// 5. Relaxation: widen the net when the floor filtered too aggressively.
	if len(candidates) < max(6, topK/2) && len(emb.Vectors) > 0 {
		relaxed := minSim - e.opts.RelaxDelta
		if relaxed < 0 {
			relaxed = 0
		}
		rows, err := e.search(ctx, emb.Vectors[0], searchK, relaxed, req.Module, req.Submodule)
		if err != nil {
			return nil, err
		}
		candidates = mergeCandidates(candidates, rows, seen, relaxed)
	}

	if len(candidates) == 0 {
		return e.respond(ModeRAG,
			"No relevant documents were found for this question. Try rephrasing or lowering the similarity threshold.",
			[]Source{}, usage), nil
	}

	// 6. MMR selection.
	selected := mmrSelect(candidates, topK, e.opts.MMRLambda)

	// 7. Context assembly.
	contextText, sources := buildContext(selected)

	// 8. Answer generation.
	comp, err := e.provider.Complete(ctx, ai.CompletionRequest{
		Model:       e.opts.ChatModel,
		System:      answerSystemPrompt,
		Prompt:      "Context:\n\n" + contextText + "\n\nQuestion: " + req.Query,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}
	usage.AddChat(comp.Usage)

	e.logger.Debug("retrieval complete",
		"rewrites", len(rewrites),
		"candidates", len(candidates),
		"selected", len(selected),
		"total_tokens", usage.TotalTokens)

	return e.respond(ModeRAG, comp.Text, sources, usage), nil
}

// rewriteQuery asks the model for up to 3 alternative search queries.
func (e *Engine) rewriteQuery(ctx context.Context, query string, usage *Usage) ([]string, error) {
	comp, err := e.provider.Complete(ctx, ai.CompletionRequest{
		Model:       e.opts.RewriteModel,
		System:      rewriteSystemPrompt,
		Prompt:      query,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}
	usage.AddChat(comp.Usage)

	var rewrites []string
	for _, line := range strings.Split(comp.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rewrites = append(rewrites, line)
		if len(rewrites) == 3 {
			break
		}
	}
	return rewrites, nil
}

// search runs the primary procedure, falling back to the legacy one when the
// primary errors. Errors from the fallback propagate.
func (e *Engine) search(ctx context.Context, vec []float32, topK int, minSim float64, module, submodule string) ([]DocRow, error) {
	rows, err := e.searcher.Search(ctx, vec, topK, minSim, module, submodule)
	if err == nil {
		return rows, nil
	}
	e.logger.Warn("primary search failed, using fallback", "error", err)
	return e.searcher.FallbackSearch(ctx, vec, topK, minSim)
}

// mergeCandidates appends rows meeting the similarity floor whose
// (source, page, content-hash) key has not been seen yet.
func mergeCandidates(candidates, rows []DocRow, seen map[string]struct{}, floor float64) []DocRow {
	for _, row := range rows {
		if row.Sim < floor {
			continue
		}
		key := dedupKey(row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, row)
	}
	return candidates
}

// dedupKey identifies a chunk by source, page and a hash of its content.
func dedupKey(row DocRow) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(row.Content))

	page := int32(-1)
	if row.Page != nil {
		page = *row.Page
	}
	return fmt.Sprintf("%s\x00%d\x00%x", row.Source, page, h.Sum64())
}

// buildContext renders the selected rows as numbered blocks and the matching
// citation list.
func buildContext(selected []DocRow) (string, []Source) {
	blocks := make([]string, len(selected))
	sources := make([]Source, len(selected))
	for i, row := range selected {
		ref := row.Source
		if row.Page != nil {
			ref = fmt.Sprintf("%s p%d", row.Source, *row.Page)
		}
		blocks[i] = fmt.Sprintf("[#%d] (src: %s)\n%s", i+1, ref, row.Content)
		sources[i] = Source{Index: i + 1, Ref: ref, Similarity: row.Sim}
	}
	return strings.Join(blocks, "\n\n"), sources
}

// respond assembles an answer-shaped response with usage and cost totals.
func (e *Engine) respond(kind, answer string, sources []Source, usage *Usage) *Response {
	return &Response{
		Kind:    kind,
		Answer:  answer,
		Sources: sources,
		Usage:   *usage,
		Cost:    usage.Estimate(e.opts.Pricing),
	}
}
