// Package groundwork answers questions from a local document set and
// refuses when the documents do not support an answer.
//
// An Engine chunks and indexes documents twice, once in a vector store and
// once in an in-memory BM25 index. Each question retrieves from both,
// fuses the rankings with reciprocal rank fusion and passes the fused hits
// through a confidence gate. Accepted questions are answered by a
// generator from the retrieved passages; rejected ones return a
// low_context result with an explanation naming the threshold and the
// best score seen.
//
// Open builds an Engine from a config.Config:
//
//	cfg, err := config.Load("groundwork.toml")
//	if err != nil {
//		return err
//	}
//	engine, err := groundwork.Open(ctx, cfg, slog.Default())
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	engine.IngestSources(ctx)
//	result := engine.Ask(ctx, "How fast is FastAPI?")
package groundwork
