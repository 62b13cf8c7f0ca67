package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListPapersActivity)
	w.RegisterActivity(a.ComputePaperIDActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ExtractMetadataActivity)
	w.RegisterActivity(a.UpsertPaperActivity)
	w.RegisterActivity(a.ChunkPaperActivity)
	w.RegisterActivity(a.LLMGenerateActivity)
	w.RegisterActivity(a.LogLLMCallActivity)
	w.RegisterActivity(a.UpsertClaimsActivity)
	w.RegisterActivity(a.EmbedEntitiesActivity)
	w.RegisterActivity(a.WritePaperArtifactsActivity)
	w.RegisterActivity(a.WriteCorpusSummaryActivity)
}
