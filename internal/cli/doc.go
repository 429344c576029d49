// Package cli defines the geoshift command tree.
//
// Commands
//
//   - geoshift          Pick a file and convert it interactively
//   - convert FILE      Convert a CSV or XLSX file without the TUI
//   - crs               List the coordinate reference systems
//   - serve             Run the HTTP API
//
// Every command builds its own CRS registry and converter. A workflow
// file (--workflow) can add systems to the registry and supply default
// options; explicit flags override it.
package cli
