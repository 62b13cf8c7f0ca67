package workflows

import (
	"context"
	"errors"
	"strings"
	"testing"

	"medgraph/internal/activities"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerPaperActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ComputePaperIDActivity", func(context.Context, activities.ComputePaperIDInput) (activities.ComputePaperIDOutput, error) {
		return activities.ComputePaperIDOutput{}, nil
	})
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "ExtractMetadataActivity", func(context.Context, activities.ExtractMetadataInput) (activities.ExtractMetadataOutput, error) {
		return activities.ExtractMetadataOutput{}, nil
	})
	registerActivityName(env, "UpsertPaperActivity", func(context.Context, activities.UpsertPaperInput) error { return nil })
	registerActivityName(env, "ChunkPaperActivity", func(context.Context, activities.ChunkPaperInput) (activities.ChunkPaperOutput, error) {
		return activities.ChunkPaperOutput{}, nil
	})
	registerActivityName(env, "LLMGenerateActivity", func(context.Context, activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
		return activities.LLMGenerateOutput{}, nil
	})
	registerActivityName(env, "LogLLMCallActivity", func(context.Context, activities.LogLLMCallInput) error { return nil })
	registerActivityName(env, "UpsertClaimsActivity", func(context.Context, activities.UpsertClaimsInput) (activities.UpsertClaimsOutput, error) {
		return activities.UpsertClaimsOutput{}, nil
	})
	registerActivityName(env, "EmbedEntitiesActivity", func(context.Context, activities.EmbedEntitiesInput) (activities.EmbedEntitiesOutput, error) {
		return activities.EmbedEntitiesOutput{}, nil
	})
	registerActivityName(env, "WritePaperArtifactsActivity", func(context.Context, activities.WritePaperArtifactsInput) error { return nil })
}

var testChunks = []activities.ChunkItem{
	{ChunkID: "c0", PaperID: "PMC999", Index: 0, Section: "abstract", Text: "Olaparib treats breast cancer."},
	{ChunkID: "c1", PaperID: "PMC999", Index: 1, Section: "results", Text: "BRCA1 increases risk of ovarian cancer."},
}

func mockPaperFront(env *testsuite.TestWorkflowEnvironment) {
	env.OnActivity("ExtractTextActivity", mock.Anything, activities.ExtractTextInput{PaperPath: "/in/PMC999.txt"}).Return(activities.ExtractTextOutput{Text: "Olaparib trial\n\nbody"}, nil)
	env.OnActivity("ExtractMetadataActivity", mock.Anything, activities.ExtractMetadataInput{Text: "Olaparib trial\n\nbody"}).Return(activities.ExtractMetadataOutput{Title: "Olaparib trial"}, nil)
	env.OnActivity("UpsertPaperActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkPaperActivity", mock.Anything, mock.Anything).Return(activities.ChunkPaperOutput{Chunks: testChunks}, nil)
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("WritePaperArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
}

func TestPaperIngestWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)
	mockPaperFront(env)

	env.OnActivity("ComputePaperIDActivity", mock.Anything, activities.ComputePaperIDInput{PaperPath: "/in/PMC999.txt"}).Return(activities.ComputePaperIDOutput{PaperID: "PMC999"}, nil)
	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.MatchedBy(func(in activities.LLMGenerateInput) bool {
		return in.Operation == "claim_extract" && in.JSON && strings.Contains(in.Prompt, "Paper: Olaparib trial")
	})).Return(activities.LLMGenerateOutput{Text: `{"claims":[]}`, ProviderName: "mock", Model: "mock-llm-v1"}, nil)
	env.OnActivity("UpsertClaimsActivity", mock.Anything, mock.Anything).Return(activities.UpsertClaimsOutput{
		Accepted:      2,
		Rejected:      1,
		NewEntities:   3,
		EntityIDs:     []string{"drug:olaparib", "disease:breast_cancer"},
		Relationships: []string{"a", "b"},
	}, nil)
	env.OnActivity("EmbedEntitiesActivity", mock.Anything, activities.EmbedEntitiesInput{EntityIDs: []string{"disease:breast_cancer", "drug:olaparib"}}).
		Return(activities.EmbedEntitiesOutput{Embedded: 2, ProviderName: "mock"}, nil).Once()

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperPath: "/in/PMC999.txt", LLMProviders: 1, EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperIngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, PaperIngestResult{
		PaperID:          "PMC999",
		Status:           "processed",
		Chunks:           2,
		ClaimsAccepted:   4,
		ClaimsRejected:   2,
		NewEntities:      6,
		Relationships:    4,
		EmbeddedEntities: 2,
	}, out)

	res, err := env.QueryWorkflow(QueryGetPaperStatus)
	require.NoError(t, err)
	var st PaperStatus
	require.NoError(t, res.Get(&st))
	require.Equal(t, "processed", st.Status)
	require.Equal(t, 2, st.ChunksDone)
	require.Equal(t, []string{"mock"}, st.Providers)
	require.Equal(t, "done", st.Steps["embed_entities"])
	env.AssertExpectations(t)
}

func TestPaperIngestWorkflowFailsOverOnQuota(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)
	mockPaperFront(env)

	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.MatchedBy(func(in activities.LLMGenerateInput) bool { return in.ProviderIndex == 0 })).
		Return(activities.LLMGenerateOutput{}, errors.New("openai status 402: insufficient_quota")).Once()
	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.MatchedBy(func(in activities.LLMGenerateInput) bool { return in.ProviderIndex == 1 })).
		Return(activities.LLMGenerateOutput{Text: `{"claims":[]}`, ProviderName: "ollama"}, nil).Times(2)
	env.OnActivity("UpsertClaimsActivity", mock.Anything, mock.Anything).Return(activities.UpsertClaimsOutput{Accepted: 1}, nil)

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperPath: "/in/PMC999.txt", PaperID: "PMC999", LLMProviders: 2, EmbedProviders: 1, CooldownSeconds: 600})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperIngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "processed", out.Status)
	require.Equal(t, 2, out.ClaimsAccepted)
	require.Equal(t, 0, out.FailedChunks)
	env.AssertExpectations(t)
}

func TestPaperIngestWorkflowAllProvidersFail(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)
	mockPaperFront(env)

	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.Anything).Return(activities.LLMGenerateOutput{}, errors.New("invalid api key"))

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperPath: "/in/PMC999.txt", PaperID: "PMC999", LLMProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperIngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out.Status)
	require.Equal(t, 2, out.FailedChunks)
	require.True(t, strings.HasPrefix(out.FailReason, "claim extraction exhausted all llm providers"))
}

func TestPaperIngestWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerPaperActivities(env)

	env.OnActivity("ComputePaperIDActivity", mock.Anything, mock.Anything).Return(activities.ComputePaperIDOutput{PaperID: "paper123"}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{}, errors.New("no extractable text found in paper"))

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperPath: "/tmp/p.pdf", LLMProviders: 1, EmbedProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperIngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out.Status)
	require.Equal(t, "paper123", out.PaperID)
	require.Contains(t, out.FailReason, "no extractable text")
}

func TestCorpusIngestWorkflowBatchesChildren(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CorpusIngestWorkflow)
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerActivityName(env, "ListPapersActivity", func(context.Context, activities.ListPapersInput) (activities.ListPapersOutput, error) {
		return activities.ListPapersOutput{}, nil
	})
	registerActivityName(env, "WriteCorpusSummaryActivity", func(context.Context, activities.WriteCorpusSummaryInput) error { return nil })

	paths := []string{"/in/a.pdf", "/in/b.txt", "/in/c.md"}
	env.OnActivity("ListPapersActivity", mock.Anything, activities.ListPapersInput{InputDir: "/in"}).Return(activities.ListPapersOutput{Paths: paths}, nil)
	env.OnActivity("WriteCorpusSummaryActivity", mock.Anything, mock.MatchedBy(func(in activities.WriteCorpusSummaryInput) bool {
		return in.RunID == "run-1" && in.Summary["input"] == "/in"
	})).Return(nil).Once()
	env.OnWorkflow(PaperIngestWorkflow, mock.Anything, mock.MatchedBy(func(in PaperIngestInput) bool { return in.PaperPath == "/in/b.txt" })).
		Return(PaperIngestResult{Status: "failed", FailReason: "no extractable text"}, nil)
	env.OnWorkflow(PaperIngestWorkflow, mock.Anything, mock.MatchedBy(func(in PaperIngestInput) bool { return in.PaperPath != "/in/b.txt" && in.LLMProviders == 2 })).
		Return(PaperIngestResult{Status: "processed", ClaimsAccepted: 5, ClaimsRejected: 1, NewEntities: 4}, nil)

	env.ExecuteWorkflow(CorpusIngestWorkflow, CorpusIngestInput{RunID: "run-1", InputDir: "/in", MaxConcurrentChildren: 2, LLMProviders: 2, EmbedProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out CorpusIngestProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 3, out.Total)
	require.Equal(t, 3, out.Done)
	require.Equal(t, 1, out.Failed)
	require.Equal(t, 10, out.ClaimsAccepted)
	require.Equal(t, 8, out.NewEntities)
	require.Equal(t, map[string]string{"/in/a.pdf": "processed", "/in/b.txt": "failed", "/in/c.md": "processed"}, out.PerPaper)
	require.Equal(t, "paper-run-1-a-pdf", out.ChildWorkflow["/in/a.pdf"])
	env.AssertExpectations(t)
}
