// Package application provides application initialization and dependency wiring.
// It encapsulates the creation of storage, packer, metrics, handlers, routers
// and HTTP server instances, and runs one-shot batch packing for the CLI, so
// the main package stays focused on flag parsing and orchestration.
package application
