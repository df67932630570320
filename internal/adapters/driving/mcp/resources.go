package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// uriScheme is the custom URI scheme for filing resources.
const uriScheme = "filings://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "jobs",
		Name:        "jobs",
		Description: "All processing jobs, newest first",
		MIMEType:    "application/json",
	}, s.handleJobsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "jobs/{jobId}",
		Name:        "job",
		Description: "Snapshot of a single processing job",
		MIMEType:    "application/json",
	}, s.handleJobResource)

	if s.ports.Company != nil {
		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "companies/{ticker}",
			Name:        "company",
			Description: "Registrant name and CIK for a ticker",
			MIMEType:    "application/json",
		}, s.handleCompanyResource)
	}
}

func (s *Server) handleJobsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobs, err := s.ports.Ingestion.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	if jobs == nil {
		jobs = []domain.ProcessingJob{}
	}
	return jsonResource(req.Params.URI, jobs)
}

func (s *Server) handleJobResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := trimResourcePrefix(req.Params.URI, "jobs/")
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	job, err := s.ports.Ingestion.Status(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return jsonResource(req.Params.URI, job)
}

func (s *Server) handleCompanyResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	ticker := trimResourcePrefix(req.Params.URI, "companies/")
	if ticker == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	company, err := s.ports.Company.Lookup(ctx, ticker)
	if errors.Is(err, domain.ErrIssuerNotFound) || errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up company: %w", err)
	}
	return jsonResource(req.Params.URI, company)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// trimResourcePrefix extracts the trailing identifier from filings://{path}{id}.
// Nested paths are rejected.
func trimResourcePrefix(uri, path string) string {
	prefix := uriScheme + path
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
