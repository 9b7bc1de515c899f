// Package mediatypes classifies files by extension into media classes and MIME
// types. Classification is extension-based on purpose: it must work on paths
// that have been discovered but not yet read (content sniffing happens later,
// in the extractors).
package mediatypes
