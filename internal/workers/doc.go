// Package workers sizes worker pools relative to available CPU.
package workers
