// Package ingestion turns documents into indexed chunks.
//
// One pass runs four steps:
//
//  1. chunk every document on a worker pool, keeping document order
//  2. embed all chunk texts in a single batch call
//  3. upsert the chunks into the vector store
//  4. rebuild the lexical index from the store's full contents and swap it in
//
// Steps 2 and 3 run under resilience policies. If either fails, the failure
// is recorded in the Report and the lexical index keeps serving its previous
// snapshot. Rebuilding from the store, not from the batch, keeps both indices
// on the same chunk population even when upserts overwrote older chunks.
//
// Passes are serialized: a Pipeline runs at most one Ingest or Reingest at a
// time.
package ingestion
