// Package edgar retrieves company filings from the SEC EDGAR archive.
//
// All requests go through one Client, which carries the declared User-Agent,
// a shared token-bucket rate limiter and retry with exponential backoff.
// TickerResolver maps trading symbols to issuers using company_tickers.json,
// and Retriever lists and downloads filings from the submissions index.
package edgar
