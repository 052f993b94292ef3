// Package index models the persisted search index: the pruned vocabulary with
// idf weights, the L2-normalized tf-idf matrix in CSR form, and row-aligned
// document metadata. An artifact is written as four parts under one prefix,
// with a manifest recording a build id and a sha256 digest per part.
package index
