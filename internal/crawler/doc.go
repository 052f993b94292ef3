// Package crawler implements the politeness-aware frontier crawler: the robots
// gate, the breadth-first frontier, the domain allow-list and the fetch loop that
// turns seed URLs into an ordered corpus of documents.
package crawler
