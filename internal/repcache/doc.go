// Package repcache is the on-demand representation cache. It resolves a
// (source path, descriptor) pair to cached artifact bytes, producing the
// artifact through the converter registry on first request and persisting it
// under the cache directory so later requests are disk reads.
//
// Concurrent requests for the same pair are collapsed into a single producer
// via singleflight. Producers run detached from the requesting client's
// context so a disconnect does not waste a conversion already underway.
package repcache
