// Package lexical provides the in-memory keyword index used by hybrid
// retrieval.
//
// An Index is an immutable BM25 snapshot of a chunk corpus. It is never
// mutated after Build returns; ingestion builds a fresh Index from the vector
// store's full contents and publishes it through a Holder, whose atomic swap
// guarantees that an in-flight query sees either the old or the new corpus,
// never a mixture.
//
// Scoring uses Okapi BM25 with a non-negative inverse document frequency,
//
//	idf(t) = ln(1 + (N - n(t) + 0.5) / (n(t) + 0.5))
//
// so a term present in every chunk of a tiny corpus still contributes a small
// positive score instead of zero or a negative one.
package lexical
