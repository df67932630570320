// Package html parses HTML filings. It strips markup, scripts and styles,
// keeps table rows on one line with cells separated by " | ", decodes
// entities and splits the text into labelled sections.
package html
