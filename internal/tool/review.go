// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lendproj/defreview/internal/document"
	"github.com/lendproj/defreview/internal/pipeline"
)

// MetadataReviewLoanDocuments describes the review_loan_documents tool.
var MetadataReviewLoanDocuments = &mcp.Tool{
	Name: "review_loan_documents",
	Description: "Review a loan application's extracted documents against the underwriting " +
		"condition catalog and return a deficiency report. " +
		"Input is an extraction report: either a multi-document payload " +
		"({loan_program, borrower_info, documents: [{classification, extracted_entities}]}) " +
		"or the single-document form ({classification, extracted_entities, ...}). " +
		"Every relevant condition is checked against all documents together; the report lists " +
		"satisfied, deficient, and not-applicable conditions, with deficiencies scored on two " +
		"axes: detection confidence (how certain the finding is) and priority (how much it " +
		"matters to closing the loan).",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"report"},
		"properties": map[string]interface{}{
			"report": map[string]interface{}{
				"type":        "object",
				"description": "Extraction report to review, in either accepted format.",
			},
		},
	},
}

// InputReviewLoanDocuments is the input for the ReviewLoanDocuments tool.
type InputReviewLoanDocuments struct {
	Report map[string]interface{} `json:"report"`
}

// OutputReviewLoanDocuments is the output for the ReviewLoanDocuments tool.
type OutputReviewLoanDocuments struct {
	Report pipeline.Report `json:"report"`
}

// Reviewer binds the review tool to a configured pipeline.
type Reviewer struct {
	pipe *pipeline.Pipeline
}

// NewReviewer creates a Reviewer.
func NewReviewer(pipe *pipeline.Pipeline) *Reviewer {
	return &Reviewer{pipe: pipe}
}

// ReviewLoanDocuments normalizes the extraction report and runs the full
// review pipeline over it.
func (r *Reviewer) ReviewLoanDocuments(ctx context.Context, _ *mcp.CallToolRequest, input InputReviewLoanDocuments) (*mcp.CallToolResult, OutputReviewLoanDocuments, error) {
	if len(input.Report) == 0 {
		return nil, OutputReviewLoanDocuments{}, fmt.Errorf("report is required")
	}

	set, err := document.NormalizeMap(input.Report)
	if err != nil {
		return nil, OutputReviewLoanDocuments{}, err
	}

	report, err := r.pipe.Run(ctx, set)
	if err != nil {
		return nil, OutputReviewLoanDocuments{}, err
	}
	return nil, OutputReviewLoanDocuments{Report: report}, nil
}
