// Package extract provides the metadata extractors that enrich stat-level file
// records with type-specific fields (dimensions, duration, codec, ...).
//
// An Extractor is a pure function of the file's path and stat info: it may be
// slow and may fail, but it never writes to the index or the cache itself. The
// watcher selects an extractor through the Registry by file extension and
// merges whatever map it returns into the record's metadata. External
// producers (AI taggers, face clustering) plug in through the same interface.
package extract
