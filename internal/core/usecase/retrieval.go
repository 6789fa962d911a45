package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/core/lexicon"
	"github.com/muhshi/demakai-bot/internal/core/ports"
)

const unknownYear = "Tidak diketahui"

type RetrievalEngine struct {
	codes    ports.ClassificationStore
	docs     ports.DocumentStore
	embedder ports.Embedder
	lexicon  *lexicon.Store
	metrics  ports.BotMetrics
	logger   *slog.Logger
}

func NewRetrievalEngine(
	codes ports.ClassificationStore,
	docs ports.DocumentStore,
	embedder ports.Embedder,
	lex *lexicon.Store,
	metrics ports.BotMetrics,
	logger *slog.Logger,
) *RetrievalEngine {
	if lex == nil {
		lex = lexicon.NewStore(nil)
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalEngine{
		codes:    codes,
		docs:     docs,
		embedder: embedder,
		lexicon:  lex,
		metrics:  metrics,
		logger:   logger,
	}
}

// RetrieveCodes runs lexical search for KBLI and KBJI, falling back to keyword
// substring search per kind. Store failures count as zero hits.
func (e *RetrievalEngine) RetrieveCodes(ctx context.Context, query string) []domain.CodeCandidate {
	ctx, span := tracer.Start(ctx, "retrieval.codes")
	defer span.End()
	lex := e.lexicon.Current()
	expanded := ExpandLexical(lex, query)
	e.logger.Debug("code_query_expanded", "query", query, "expanded", expanded)

	kbli := e.searchKind(ctx, lex, domain.KindKBLI, expanded)
	kbji := e.searchKind(ctx, lex, domain.KindKBJI, expanded)

	candidates := make([]domain.CodeCandidate, 0, len(kbli)+len(kbji))
	candidates = appendTop(candidates, kbli, lex.Limits.TopKBLI, lex.Limits.DescriptionRunes)
	candidates = appendTop(candidates, kbji, lex.Limits.TopKBJI, lex.Limits.DescriptionRunes)
	candidates = dedupeCandidates(candidates)

	span.SetAttributes(attribute.Int("demakai.candidates", len(candidates)))
	e.metrics.ObserveCandidates(domain.ModeCodeLookup, len(candidates))
	e.logger.Info("code_candidates", "kbli", len(kbli), "kbji", len(kbji), "selected", len(candidates))
	return candidates
}

func (e *RetrievalEngine) searchKind(
	ctx context.Context,
	lex *lexicon.Lexicon,
	kind domain.ClassificationKind,
	expanded string,
) []domain.ClassificationEntry {
	limit := lex.Limits.TextSearch
	hits, err := e.codes.SearchLexical(ctx, kind, expanded, limit)
	if err != nil {
		e.logger.Warn("code_search_failed", "kind", kind, "stage", "lexical", "error", err)
		hits = nil
	}
	if len(hits) > 0 {
		return hits
	}

	keywords := ExtractKeywords(lex, expanded)
	if len(keywords) == 0 {
		return nil
	}
	hits, err = e.codes.SearchKeywords(ctx, kind, keywords, limit)
	if err != nil {
		e.logger.Warn("code_search_failed", "kind", kind, "stage", "keywords", "error", err)
		return nil
	}
	return hits
}

func appendTop(dst []domain.CodeCandidate, hits []domain.ClassificationEntry, top, descRunes int) []domain.CodeCandidate {
	for i, hit := range hits {
		if i == top {
			break
		}
		dst = append(dst, domain.CodeCandidate{
			Code:        hit.Code,
			Title:       hit.Title,
			Description: truncateRunes(hit.Description, descRunes),
			Kind:        hit.Kind,
		})
	}
	return dst
}

func dedupeCandidates(items []domain.CodeCandidate) []domain.CodeCandidate {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		key := string(item.Kind) + ":" + item.Code
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// RetrievePublications answers listing questions with the catalog and everything else
// with a cosine ranking over stored chunks.
func (e *RetrievalEngine) RetrievePublications(ctx context.Context, query string) (result domain.PublicationResult, err error) {
	ctx, span := tracer.Start(ctx, "retrieval.publications")
	defer func() {
		span.SetAttributes(
			attribute.Bool("demakai.listing", result.IsListing),
			attribute.Int("demakai.candidates", len(result.Candidates)),
		)
		finishSpan(span, err)
	}()
	lex := e.lexicon.Current()
	if lex.IsListingQuery(query) {
		catalog, err := e.Catalog(ctx)
		if err != nil {
			return domain.PublicationResult{}, err
		}
		return domain.PublicationResult{Catalog: catalog, IsListing: true}, nil
	}

	// The expansion is diagnostic only; the raw query is what gets embedded.
	e.logger.Debug("publication_query_expanded", "query", query, "expanded", ExpandVector(lex, query))

	vector, err := e.embedder.Embed(ctx, query, domain.ModePublication)
	if err != nil {
		e.logger.Warn("publication_embed_failed", "error", err)
		return domain.PublicationResult{}, nil
	}
	if vector == nil {
		return domain.PublicationResult{}, nil
	}

	docs, err := e.docs.ListDocuments(ctx)
	if err != nil {
		e.logger.Warn("publication_store_failed", "error", err)
		return domain.PublicationResult{}, nil
	}

	ranked := rankChunks(docs, vector, lex.Limits.TopPublications, lex.Limits.DescriptionRunes)
	threshold := lex.Thresholds.Publication
	relevant := filterBySimilarity(ranked, threshold)
	if len(relevant) == 0 && threshold > lex.Thresholds.RelaxGuard {
		relevant = filterBySimilarity(ranked, lex.Thresholds.Relaxed)
		e.logger.Info("publication_threshold_relaxed", "from", threshold, "to", lex.Thresholds.Relaxed, "hits", len(relevant))
	}

	e.metrics.ObserveCandidates(domain.ModePublication, len(relevant))
	e.logger.Info("publication_candidates", "ranked", len(ranked), "relevant", len(relevant), "threshold", threshold)
	return domain.PublicationResult{Candidates: relevant}, nil
}

func rankChunks(docs []domain.Document, query []float32, top, descRunes int) []domain.PublicationCandidate {
	ranked := make([]domain.PublicationCandidate, 0, 64)
	for _, doc := range docs {
		for _, chunk := range doc.Chunks {
			if len(chunk.Embedding) == 0 {
				continue
			}
			ranked = append(ranked, domain.PublicationCandidate{
				Title:       doc.Title,
				Year:        doc.Year,
				SourceType:  doc.SourceType,
				Description: truncateRunes(chunk.Text, descRunes),
				Similarity:  CosineSimilarity(query, chunk.Embedding),
			})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	if len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}

func filterBySimilarity(items []domain.PublicationCandidate, threshold float64) []domain.PublicationCandidate {
	out := make([]domain.PublicationCandidate, 0, len(items))
	for _, item := range items {
		if item.Similarity >= threshold {
			out = append(out, item)
		}
	}
	return out
}

// Catalog lists every publication grouped by year, newest first.
func (e *RetrievalEngine) Catalog(ctx context.Context) (string, error) {
	metas, err := e.docs.ListMetadata(ctx)
	if err != nil {
		return "", fmt.Errorf("list document metadata: %w", err)
	}
	return renderCatalog(metas), nil
}

func renderCatalog(metas []domain.DocumentMetadata) string {
	if len(metas) == 0 {
		return "Maaf, saat ini belum ada publikasi yang tersedia."
	}

	byYear := make(map[string][]domain.DocumentMetadata)
	years := make([]string, 0)
	for _, meta := range metas {
		year := meta.Year
		if year == "" {
			year = unknownYear
		}
		if _, ok := byYear[year]; !ok {
			years = append(years, year)
		}
		byYear[year] = append(byYear[year], meta)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))

	var b strings.Builder
	b.WriteString("📚 Publikasi yang tersedia:\n\n")
	for _, year := range years {
		fmt.Fprintf(&b, "**%s:**\n", year)
		for i, meta := range byYear[year] {
			fmt.Fprintf(&b, "%d. %s [%s]%s\n", i+1, meta.Title, meta.SourceType, renderTags(meta.Tags))
		}
		b.WriteString("\n")
	}
	b.WriteString("💡 Tanya detail publikasi dengan menyebutkan judulnya!")
	return b.String()
}

func renderTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	if len(tags) > 2 {
		tags = tags[:2]
	}
	return " #" + strings.Join(tags, " #")
}
