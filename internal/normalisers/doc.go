// Package normalisers turns raw filings into ParsedDocuments.
// Each subpackage handles one format; Registry sniffs content and
// dispatches to the matching parser.
package normalisers
