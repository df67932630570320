package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// StartProcessingInput is the input schema for the start_processing tool.
type StartProcessingInput struct {
	Ticker    string `json:"ticker" jsonschema:"the company ticker symbol, e.g. AAPL"`
	TimeRange int    `json:"time_range,omitempty" jsonschema:"look-back window in years: 1, 3 or 5 (default 3)"`
	Force     bool   `json:"force,omitempty" jsonschema:"re-ingest even when a recent complete job exists"`
}

// JobRef identifies a job either by ID or by ticker.
type JobRef struct {
	JobID  string `json:"job_id,omitempty" jsonschema:"the job identifier"`
	Ticker string `json:"ticker,omitempty" jsonschema:"the company ticker; selects its most recent job"`
}

// JobOutput is the output schema for the job tools.
type JobOutput struct {
	Job domain.ProcessingJob `json:"job"`
}

// CancelOutput is the output schema for the cancel_processing tool.
type CancelOutput struct {
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// QueryInput is the input schema for the query_filings tool.
type QueryInput struct {
	Question  string `json:"question" jsonschema:"the natural-language question"`
	Ticker    string `json:"ticker" jsonschema:"the company ticker whose filings should be searched"`
	SessionID string `json:"session_id,omitempty" jsonschema:"optional conversation identifier"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "start_processing",
		Description: "Download, parse and index a company's SEC filings so they can be queried",
	}, s.handleStartProcessing)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_status",
		Description: "Report the phase and progress of a processing job",
	}, s.handleGetStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cancel_processing",
		Description: "Request cancellation of a running processing job",
	}, s.handleCancel)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_filings",
		Description: "Answer a question from a company's indexed filings, with citations",
	}, s.handleQuery)
}

func (s *Server) handleStartProcessing(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StartProcessingInput,
) (*mcp.CallToolResult, JobOutput, error) {
	years := input.TimeRange
	if years == 0 {
		years = domain.DefaultTimeRangeYears
	}

	job, err := s.ports.Ingestion.Submit(ctx, driving.SubmitRequest{
		Ticker:         input.Ticker,
		TimeRangeYears: years,
		Force:          input.Force,
	})
	if err != nil {
		return nil, JobOutput{}, s.toolError("start_processing", err)
	}
	return nil, JobOutput{Job: *job}, nil
}

func (s *Server) handleGetStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JobRef,
) (*mcp.CallToolResult, JobOutput, error) {
	var (
		job *domain.ProcessingJob
		err error
	)
	switch {
	case input.JobID != "":
		job, err = s.ports.Ingestion.Status(ctx, input.JobID)
	case input.Ticker != "":
		job, err = s.ports.Ingestion.StatusByTicker(ctx, input.Ticker)
	default:
		err = fmt.Errorf("%w: job_id or ticker is required", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, JobOutput{}, s.toolError("get_status", err)
	}
	return nil, JobOutput{Job: *job}, nil
}

func (s *Server) handleCancel(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JobRef,
) (*mcp.CallToolResult, CancelOutput, error) {
	var err error
	switch {
	case input.JobID != "":
		err = s.ports.Ingestion.Cancel(ctx, input.JobID)
	case input.Ticker != "":
		err = s.ports.Ingestion.CancelByTicker(ctx, input.Ticker)
	default:
		err = fmt.Errorf("%w: job_id or ticker is required", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, CancelOutput{}, s.toolError("cancel_processing", err)
	}
	return nil, CancelOutput{
		Cancelled: true,
		Message:   "cancellation requested; the job stops at its next checkpoint",
	}, nil
}

func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, domain.QueryResult, error) {
	result, err := s.ports.Query.Answer(ctx, domain.QueryRequest{
		Question:  input.Question,
		Ticker:    input.Ticker,
		SessionID: input.SessionID,
	})
	if err != nil {
		return nil, domain.QueryResult{}, s.toolError("query_filings", err)
	}
	return nil, *result, nil
}

// toolError turns service errors into messages an assistant can act on.
// The original error stays wrapped so callers can still match it.
func (s *Server) toolError(tool string, err error) error {
	s.log.Debug("tool call failed", zap.String("tool", tool), zap.Error(err))

	var hint string
	switch {
	case errors.Is(err, domain.ErrNotReady):
		hint = "filings for this ticker are not indexed yet; call start_processing and wait for the job to complete"
	case errors.Is(err, domain.ErrJobInProgress):
		hint = "a job for this ticker and time range is already running; poll it with get_status"
	case errors.Is(err, domain.ErrIssuerNotFound):
		hint = "the ticker could not be matched to an SEC registrant"
	case errors.Is(err, domain.ErrNotFound):
		hint = "no matching job was found"
	case errors.Is(err, domain.ErrInvalidInput):
		hint = "the request was rejected"
	case errors.Is(err, domain.ErrLLMUnavailable), errors.Is(err, domain.ErrEmbeddingUnavailable):
		hint = "the AI provider is not configured; run 'sercha-filings settings' first"
	default:
		return err
	}
	return fmt.Errorf("%s: %w", hint, err)
}
