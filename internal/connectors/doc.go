// Package connectors holds the clients for external filing sources.
// The edgar subpackage is the only source today.
package connectors
