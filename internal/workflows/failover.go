package workflows

import (
	"fmt"
	"time"

	"medgraph/internal/activities"
	"medgraph/internal/providers"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// providerState tracks providers benched after quota, rate limit or
// repeated failures. It lives for one workflow run.
type providerState struct {
	disabledUntil map[string]time.Time
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[string]time.Time{}}
}

// providerCtx runs each provider call once; rotation replaces activity retries.
func providerCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithRetryPolicy(ctx, temporal.RetryPolicy{MaximumAttempts: 1})
}

func callLLMWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.LLMGenerateInput, retryCounts map[string]int) (activities.LLMGenerateOutput, string, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	callCtx := providerCtx(ctx)
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		key := fmt.Sprintf("llm-%d", idx)
		if isProviderDisabled(ctx, state, key) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.LLMGenerateOutput
		err := workflow.ExecuteActivity(callCtx, "LLMGenerateActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, PaperID: input.PaperID, ProviderName: out.ProviderName, Model: out.Model, Status: "ok"}).Get(ctx, nil)
			return out, "", nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, PaperID: input.PaperID, ProviderName: fmt.Sprintf("provider-%d", idx), Status: "failed", ErrorType: string(errType)}).Get(ctx, nil)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, key, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, key, 2*time.Minute)
			}
		case providers.ErrorTimeout, providers.ErrorUnavailable:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, key, time.Minute)
			}
		case providers.ErrorContext:
			return activities.LLMGenerateOutput{}, string(providers.ErrorContext), err
		default:
			disableProviderUntil(ctx, state, key, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all llm providers exhausted")
	}
	return activities.LLMGenerateOutput{}, string(providers.ClassifyError(lastErr)), lastErr
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedEntitiesInput, paperID string, retryCounts map[string]int) (activities.EmbedEntitiesOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	callCtx := providerCtx(ctx)
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		key := fmt.Sprintf("embed-%d", idx)
		if isProviderDisabled(ctx, state, key) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedEntitiesOutput
		err := workflow.ExecuteActivity(callCtx, "EmbedEntitiesActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: "entity_embed", PaperID: paperID, ProviderName: out.ProviderName, Model: out.Model, Status: "ok"}).Get(ctx, nil)
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: "entity_embed", PaperID: paperID, ProviderName: fmt.Sprintf("provider-%d", idx), Status: "failed", ErrorType: string(errType)}).Get(ctx, nil)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, key, cooldown)
		case providers.ErrorRate, providers.ErrorTimeout, providers.ErrorUnavailable:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, key, 2*time.Minute)
			}
		default:
			disableProviderUntil(ctx, state, key, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedEntitiesOutput{}, lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, key string) bool {
	until, ok := state.disabledUntil[key]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, key string, d time.Duration) {
	state.disabledUntil[key] = workflow.Now(ctx).Add(d)
}
