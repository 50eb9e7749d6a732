package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wolfeidau/reportctl/internal/models"
)

type createAnalysisRequest struct {
	FileID     string         `json:"file_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ListAnalyses returns every analysis job for a file.
func (c *Client) ListAnalyses(ctx context.Context, fileID string) (*models.AnalysisList, error) {
	if fileID == "" {
		return nil, fmt.Errorf("file id is required")
	}

	var list models.AnalysisList

	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/reporting_analysis/file/" + url.PathEscape(fileID),
		authed: true,
	}, &list)
	if err != nil {
		return nil, err
	}

	return &list, nil
}

// CreateAnalysis starts an analysis job for a file.
func (c *Client) CreateAnalysis(ctx context.Context, fileID string, parameters map[string]any) (*models.Analysis, error) {
	if fileID == "" {
		return nil, fmt.Errorf("file id is required")
	}

	var analysis models.Analysis

	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/reporting_analysis/",
		body:   createAnalysisRequest{FileID: fileID, Parameters: parameters},
		authed: true,
	}, &analysis)
	if err != nil {
		return nil, err
	}

	return &analysis, nil
}

// DeleteAnalysis removes an analysis job.
func (c *Client) DeleteAnalysis(ctx context.Context, analysisID string) error {
	if analysisID == "" {
		return fmt.Errorf("analysis id is required")
	}

	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/v1/reporting_analysis/" + url.PathEscape(analysisID),
		authed: true,
	}, nil)
}
