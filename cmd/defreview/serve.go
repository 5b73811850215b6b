// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lendproj/defreview/internal/tool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server on stdin/stdout exposing the review_loan_documents
tool. Logs go to stderr so stdout stays clean for the MCP framing.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	pipe, log, err := buildPipeline(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	server := mcp.NewServer(&mcp.Implementation{Name: "defreview", Version: version}, nil)
	mcp.AddTool(server, tool.MetadataReviewLoanDocuments, tool.NewReviewer(pipe).ReviewLoanDocuments)

	log.Info("starting defreview MCP server over stdio")
	return server.Run(cmd.Context(), &mcp.StdioTransport{})
}
