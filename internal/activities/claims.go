package activities

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"medgraph/internal/graph"
	"medgraph/internal/logger"
	"medgraph/internal/metrics"
	"medgraph/internal/providers"
	"medgraph/internal/util"
)

// UpsertClaimsActivity turns one chunk's extraction response into entities
// and relationships. Claims that cannot be stored are skipped and counted,
// never failing the paper.
func (a *Activities) UpsertClaimsActivity(ctx context.Context, in UpsertClaimsInput) (UpsertClaimsOutput, error) {
	out := UpsertClaimsOutput{}
	claims, err := graph.ParseClaimsJSON(in.Response)
	if err != nil {
		logger.Warn("unparseable claim response", "paper_id", in.PaperID, "chunk", in.Chunk.Index, "provider", in.Provider, "err", err)
		metrics.RecordClaim(false, "unparseable")
		out.Rejected++
		return out, nil
	}

	method := graph.ExtractLLM
	if in.Provider == "mock" {
		method = graph.ExtractPatternMatching
	}
	loc := graph.ClaimLocation{
		PaperID:      in.PaperID,
		Section:      graph.SectionType(in.Chunk.Section),
		ParagraphIdx: in.Chunk.Index,
		Method:       method,
	}
	touched := map[string]struct{}{}
	for _, c := range claims {
		if c.Confidence < a.cfg.MinClaimConfidence {
			a.reject(&out, in, c, "low_confidence", nil)
			continue
		}
		c.Evidence = groundEvidence(in.Chunk.Text, c)
		subj, obj, err := c.Entities()
		if err != nil {
			a.reject(&out, in, c, "invalid_entity", err)
			continue
		}
		rel, err := c.Relationship(loc)
		if err != nil {
			a.reject(&out, in, c, "invalid_relationship", err)
			continue
		}
		for _, e := range []graph.Entity{subj, obj} {
			created, err := a.repo.EnsureEntity(ctx, e)
			if err != nil {
				return out, fmt.Errorf("ensure entity %s: %w", e.EntityID, err)
			}
			if created {
				out.NewEntities++
			}
			touched[e.EntityID] = struct{}{}
		}
		merged, err := a.repo.UpsertRelationship(ctx, rel)
		if err != nil {
			if errors.Is(err, graph.ErrInvalid) {
				a.reject(&out, in, c, "merge_conflict", err)
				continue
			}
			return out, fmt.Errorf("upsert relationship %s: %w", rel.Key(), err)
		}
		metrics.RecordClaim(true, "")
		out.Accepted++
		out.Relationships = append(out.Relationships, merged.Key().String())
	}
	out.EntityIDs = make([]string, 0, len(touched))
	for id := range touched {
		out.EntityIDs = append(out.EntityIDs, id)
	}
	sort.Strings(out.EntityIDs)
	return out, nil
}

func (a *Activities) reject(out *UpsertClaimsOutput, in UpsertClaimsInput, c graph.Claim, reason string, err error) {
	out.Rejected++
	metrics.RecordClaim(false, reason)
	kv := []any{"paper_id", in.PaperID, "chunk", in.Chunk.Index, "claim", c.Key(), "reason", reason}
	if err != nil {
		kv = append(kv, "err", err)
	}
	logger.Warn("skipping claim", kv...)
}

// groundEvidence keeps the model's quoted span when it occurs in the chunk
// and otherwise falls back to the chunk sentence that best mentions both
// entities.
func groundEvidence(chunk string, c graph.Claim) string {
	quoted := strings.ToLower(strings.Join(strings.Fields(c.Evidence), " "))
	if quoted != "" && strings.Contains(strings.ToLower(chunk), quoted) {
		return c.Evidence
	}
	if s := util.EvidenceSnippet(chunk, c.SubjectName+" "+c.ObjectName, 0); s != "" {
		return s
	}
	return c.Evidence
}

// EmbedEntitiesActivity embeds the named entities that have no embedding yet.
func (a *Activities) EmbedEntitiesActivity(ctx context.Context, in EmbedEntitiesInput) (EmbedEntitiesOutput, error) {
	pending := make([]graph.Entity, 0, len(in.EntityIDs))
	for _, id := range in.EntityIDs {
		e, ok, err := a.repo.Entity(ctx, id)
		if err != nil {
			return EmbedEntitiesOutput{}, fmt.Errorf("load entity %s: %w", id, err)
		}
		if !ok || len(e.Embedding) > 0 {
			continue
		}
		pending = append(pending, e)
	}
	provider, ref := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	if len(pending) == 0 {
		return EmbedEntitiesOutput{ProviderName: ref.Name}, nil
	}
	inputs := make([]string, 0, len(pending))
	for _, e := range pending {
		inputs = append(inputs, e.EmbeddingText())
	}
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: "entity_embed",
		Inputs:    inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedEntitiesOutput{}, providers.AsActivityError(fmt.Errorf("embed via %s failed: %w", ref.Raw, err))
	}
	if len(vectors) != len(pending) {
		err := fmt.Errorf("%s returned %d vectors for %d entities: %w", info.Name, len(vectors), len(pending), util.ErrBadResponse)
		return EmbedEntitiesOutput{}, providers.AsActivityError(err)
	}
	out := EmbedEntitiesOutput{ProviderName: info.Name, Model: info.Model}
	for i, e := range pending {
		e.Embedding = toFloat64(vectors[i])
		if err := a.repo.SaveEntity(ctx, e); err != nil {
			if errors.Is(err, graph.ErrInvalid) {
				logger.Warn("skipping embedding", "entity_id", e.EntityID, "err", err)
				continue
			}
			return out, fmt.Errorf("save entity %s: %w", e.EntityID, err)
		}
		out.Embedded++
	}
	return out, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
