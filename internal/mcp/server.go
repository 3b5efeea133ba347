package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"

	"github.com/a3tai/order-intake/internal/config"
	"github.com/a3tai/order-intake/internal/descriptions"
	"github.com/a3tai/order-intake/internal/extract"
	"github.com/a3tai/order-intake/internal/intake"
	"github.com/a3tai/order-intake/internal/pdf"
	"github.com/a3tai/order-intake/internal/rules"
	"github.com/a3tai/order-intake/internal/security"
)

var toolNames = []string{
	"order_list_customers",
	"order_get_rules",
	"order_check_rules",
	"order_search_documents",
	"order_extract_file",
	"order_server_info",
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	intake    *intake.Service
	editor    *rules.Editor
	paths     *security.PathValidator
	mcpServer *server.MCPServer
	logger    *log.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *intake.Service, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if svc == nil {
		return nil, fmt.Errorf("intake service cannot be nil")
	}
	if logger == nil {
		logger = &log.DefaultLogger
	}

	s := &Server{
		config: cfg,
		intake: svc,
		editor: rules.NewEditor(svc.Store()),
		logger: logger,
	}

	if cfg.DocumentDirectory != "" {
		paths, err := security.NewPathValidator(cfg.DocumentDirectory)
		if err != nil {
			return nil, fmt.Errorf("document directory: %w", err)
		}
		s.paths = paths
	}

	s.mcpServer = server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"order_list_customers",
		mcp.WithDescription(descriptions.OrderListCustomersDescription),
		mcp.WithString("query",
			mcp.Description("Optional fuzzy filter on the customer name"),
		),
	), s.handleListCustomers)

	s.mcpServer.AddTool(mcp.NewTool(
		"order_get_rules",
		mcp.WithDescription(descriptions.OrderGetRulesDescription),
		mcp.WithString("customer",
			mcp.Required(),
			mcp.Description("Customer name as returned by order_list_customers"),
		),
	), s.handleGetRules)

	s.mcpServer.AddTool(mcp.NewTool(
		"order_check_rules",
		mcp.WithDescription(descriptions.OrderCheckRulesDescription),
		mcp.WithString("rules",
			mcp.Required(),
			mcp.Description("JSON object mapping field names to regular expressions"),
		),
	), s.handleCheckRules)

	s.mcpServer.AddTool(mcp.NewTool(
		"order_search_documents",
		mcp.WithDescription(descriptions.OrderSearchDocumentsDescription),
		mcp.WithString("query",
			mcp.Description("Optional fuzzy filter on the file path"),
		),
	), s.handleSearchDocuments)

	s.mcpServer.AddTool(mcp.NewTool(
		"order_extract_file",
		mcp.WithDescription(descriptions.OrderExtractFileDescription),
		mcp.WithString("customer",
			mcp.Required(),
			mcp.Description("Customer whose rules are applied"),
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF path, relative to the document directory"),
		),
	), s.handleExtractFile)

	s.mcpServer.AddTool(mcp.NewTool(
		"order_server_info",
		mcp.WithDescription(descriptions.OrderServerInfoDescription),
	), s.handleServerInfo)
}

func (s *Server) handleListCustomers(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := ""
	if q, ok := request.GetArguments()["query"].(string); ok {
		query = q
	}

	customers, err := s.intake.Store().Search(query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(customers) == 0 {
		if query != "" {
			return mcp.NewToolResultText(fmt.Sprintf("No customers match %q", query)), nil
		}
		return mcp.NewToolResultText("No customers have rules yet"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d customer(s):\n", len(customers))
	for _, c := range customers {
		fmt.Fprintf(&sb, "- %s\n", c)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleGetRules(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customer, err := request.RequireString("customer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	exists, err := s.intake.Store().Exists(customer)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !exists {
		return mcp.NewToolResultError(fmt.Sprintf("customer %q has no rules", customer)), nil
	}

	text, err := s.editor.Render(customer)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rules for %s:\n%s", customer, text)

	rs, err := s.intake.Store().Load(customer)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	writePatternErrors(&sb, rules.ValidateSyntax(rs))

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleCheckRules(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("rules")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	errs, err := s.editor.Check(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(errs) == 0 {
		return mcp.NewToolResultText("All patterns are valid"), nil
	}
	var sb strings.Builder
	writePatternErrors(&sb, errs)
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleSearchDocuments(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.paths == nil {
		return mcp.NewToolResultError("document directory is not configured"), nil
	}

	query := ""
	if q, ok := request.GetArguments()["query"].(string); ok {
		query = q
	}

	docs, err := pdf.FindDocuments(s.paths.Root(), query, s.config.MaxFileSize)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(docs) == 0 {
		text := fmt.Sprintf("No PDF files found in directory: %s", s.paths.Root())
		if query != "" {
			text += fmt.Sprintf(" (searched for: %s)", query)
		}
		return mcp.NewToolResultText(text), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d PDF file(s) in %s:\n", len(docs), s.paths.Root())
	for _, d := range docs {
		fmt.Fprintf(&sb, "- %s (%d bytes, modified %s)\n", d.Path, d.Size, d.Modified.Format("2006-01-02 15:04:05"))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleExtractFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customer, err := request.RequireString("customer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if s.paths == nil {
		return mcp.NewToolResultError("document directory is not configured"), nil
	}
	resolved, err := s.paths.Resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.intake.ExtractFile(ctx, customer, resolved)
	if err != nil && !errors.Is(err, intake.ErrNoText) {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatOrderResult(path, res, err)), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customers, err := s.intake.Store().List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Server: %s %s\n", s.config.ServerName, s.config.Version)
	fmt.Fprintf(&sb, "Rules directory: %s\n", s.intake.Store().Dir())
	if s.paths != nil {
		fmt.Fprintf(&sb, "Document directory: %s\n", s.paths.Root())
	} else {
		sb.WriteString("Document directory: (not configured)\n")
	}
	fmt.Fprintf(&sb, "Max file size: %d bytes\n", s.config.MaxFileSize)
	fmt.Fprintf(&sb, "OCR: %s at %d DPI", s.config.OCR.Language, s.config.OCR.DPI)
	if s.config.OCR.MaxPages > 0 {
		fmt.Fprintf(&sb, ", first %d page(s)", s.config.OCR.MaxPages)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "\nCustomers (%d):\n", len(customers))
	for _, c := range customers {
		fmt.Fprintf(&sb, "- %s\n", c)
	}

	tools := append([]string(nil), toolNames...)
	sort.Strings(tools)
	sb.WriteString("\nTools:\n")
	for _, name := range tools {
		fmt.Fprintf(&sb, "- %s\n", name)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) formatOrderResult(path string, res *intake.OrderResult, extractErr error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extracted %s for %s\n", path, res.Customer)
	fmt.Fprintf(&sb, "Method: %s\n", res.Method)
	fmt.Fprintf(&sb, "Pages: %d\n", res.Pages)

	for _, w := range res.Warnings {
		fmt.Fprintf(&sb, "⚠ %s\n", w)
	}
	if extractErr != nil {
		fmt.Fprintf(&sb, "\n⚠️  WARNING: %s. Try a higher quality scan.\n", extractErr)
		return sb.String()
	}

	sb.WriteString("\nFields:\n")
	for _, f := range res.Fields {
		fmt.Fprintf(&sb, "- %s: %s (%d match(es))\n", f.Field, f.Status, len(f.Matches))
	}

	sb.WriteString("\nTable:\n")
	writeTable(&sb, res.Table)

	sb.WriteString("\nText preview:\n")
	sb.WriteString(res.Preview)
	return sb.String()
}

// writeTable renders t as tab separated lines.
func writeTable(sb *strings.Builder, t *extract.Table) {
	for _, record := range t.Records() {
		sb.WriteString(strings.Join(record, "\t"))
		sb.WriteString("\n")
	}
	if len(t.Rows) == 0 {
		sb.WriteString("(no matches)\n")
	}
}

func writePatternErrors(sb *strings.Builder, errs []rules.PatternError) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(sb, "\nInvalid patterns (%d):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(sb, "- %s: %s\n", e.Field, e.Message)
	}
}

// Run serves MCP over stdin/stdout until the client disconnects or the
// process is signalled.
func (s *Server) Run(_ context.Context) error {
	s.logger.Debug().
		Str("rules_dir", s.intake.Store().Dir()).
		Str("doc_dir", s.config.DocumentDirectory).
		Msg("Starting order intake MCP server in stdio mode")

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
