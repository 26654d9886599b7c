package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/csvdeck/csvdeck/internal/model"
)

const (
	defaultReadLimit    = 25
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// registerTools registers all csvdeck MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Discovery tools -----

	srv.AddTool(
		mcp.NewTool("csvdeck_list_tables",
			mcp.WithDescription(
				"List every uploaded table with its row count and columns. "+
					"Use this first to discover what data is available.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListTables,
	)

	srv.AddTool(
		mcp.NewTool("csvdeck_describe_table",
			mcp.WithDescription(
				"Get the columns of a table with their inferred types "+
					"(integer, float, text, boolean, date) and nullability.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description("Name of the table to describe"),
			),
		),
		s.handleDescribeTable,
	)

	// ----- Read tools -----

	srv.AddTool(
		mcp.NewTool("csvdeck_read_rows",
			mcp.WithDescription(
				"Read one page of a table in the order the rows appeared in the uploaded file.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description("Name of the table to read"),
			),
			mcp.WithNumber("page",
				mcp.Description("1-based page number (default 1)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Rows per page (default 25)"),
			),
		),
		s.handleReadRows,
	)

	srv.AddTool(
		mcp.NewTool("csvdeck_query",
			mcp.WithDescription(
				"Run one read-only SQL statement against the uploaded tables. "+
					"Only SELECT, WITH, PRAGMA, SHOW, DESCRIBE and EXPLAIN are accepted; "+
					"anything that writes is rejected. Results are capped and the "+
					"statement is recorded in the query history.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("SQL text, e.g. \"SELECT region, SUM(amount) FROM sales GROUP BY region\""),
			),
		),
		s.handleQuery,
	)

	srv.AddTool(
		mcp.NewTool("csvdeck_profile",
			mcp.WithDescription(
				"Compute data-quality statistics for a table: per-column null count, "+
					"null percentage, distinct count and sample values.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description("Name of the table to profile"),
			),
		),
		s.handleProfile,
	)

	srv.AddTool(
		mcp.NewTool("csvdeck_query_history",
			mcp.WithDescription("List recent ad hoc queries, newest first, with timing and outcome."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("limit",
				mcp.Description("Maximum entries to return (default 20, max 500)"),
			),
		),
		s.handleQueryHistory,
	)
}

func (s *MCPServer) handleListTables(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	type columnSummary struct {
		Name string           `json:"name"`
		Type model.ColumnType `json:"type"`
	}
	type tableInfo struct {
		Name     string          `json:"name"`
		RowCount int64           `json:"row_count"`
		Columns  []columnSummary `json:"columns"`
	}

	metas := s.tables.List()
	tables := make([]tableInfo, 0, len(metas))
	for _, t := range metas {
		cols := make([]columnSummary, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = columnSummary{Name: c.Name, Type: c.Type}
		}
		tables = append(tables, tableInfo{Name: t.Name, RowCount: t.RowCount, Columns: cols})
	}
	return successJSON(tables)
}

func (s *MCPServer) handleDescribeTable(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	table, err := requireString(request, "table")
	if err != nil {
		return toolError("%v", err)
	}
	meta, err := s.tables.Get(table)
	if err != nil {
		return s.engineError("describe", err)
	}
	return successJSON(meta)
}

func (s *MCPServer) handleReadRows(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	table, err := requireString(request, "table")
	if err != nil {
		return toolError("%v", err)
	}
	page := optionalInt(request, "page", 1)
	limit := clamp(optionalInt(request, "limit", defaultReadLimit), 1, s.tables.MaxPageSize())

	res, err := s.exec.RunPaginated(ctx, table, page, limit)
	if err != nil {
		return s.engineError("read", err)
	}

	rows := make([]map[string]model.Value, len(res.Rows))
	for i, row := range res.Rows {
		obj := make(map[string]model.Value, len(res.Columns))
		for j, c := range res.Columns {
			obj[c.Name] = row[j]
		}
		rows[i] = obj
	}
	return successJSON(map[string]any{
		"table":      res.Table,
		"rows":       rows,
		"total_rows": res.TotalRows,
		"page":       res.Page,
		"limit":      res.Limit,
	})
}

func (s *MCPServer) handleQuery(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	text, err := requireString(request, "query")
	if err != nil {
		return toolError("%v", err)
	}
	res, err := s.exec.RunAdHoc(ctx, text)
	if err != nil {
		return s.engineError("query", err)
	}
	return successJSON(map[string]any{
		"columns":   res.Columns,
		"rows":      res.Rows,
		"row_count": len(res.Rows),
		"truncated": res.Truncated,
	})
}

func (s *MCPServer) handleProfile(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	table, err := requireString(request, "table")
	if err != nil {
		return toolError("%v", err)
	}
	res, err := s.profiler.Profile(ctx, table)
	if err != nil {
		return s.engineError("profile", err)
	}
	return successJSON(res)
}

func (s *MCPServer) handleQueryHistory(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	limit := clamp(optionalInt(request, "limit", defaultHistoryLimit), 1, maxHistoryLimit)
	recs, err := s.audit.ListQueries(ctx, limit)
	if err != nil {
		return s.engineError("history", err)
	}
	return successJSON(recs)
}
