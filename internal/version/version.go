// Package version holds the release version reported by the etl binary.
package version

// Current is overridden at build time with
// -ldflags "-X github.com/Xanthus1/louisville-expenditure-etl/internal/version.Current=<x.y.z>".
var Current = "0.1.0"
