// Package options defines the debug and runtime option sets consumed by the
// execution managers. Both are immutable after construction and built with
// functional options; runtime options can also be sourced from KESTREL_*
// environment variables for deployment configuration.
package options
