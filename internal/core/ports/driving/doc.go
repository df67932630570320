// Package driving declares what the CLI, TUI, HTTP API and MCP server may
// ask of the core: submit and track processing jobs, answer questions,
// look up companies and edit settings. internal/core/services implements
// every interface here.
package driving
