// Command steelcrawl-mcp exposes a steelcrawl server as MCP tools over
// stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// previewRows is how many records a finished crawl prints.
const previewRows = 20

func main() {
	apiURL := os.Getenv("STEEL_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := newAPIClient(apiURL, os.Getenv("STEEL_API_KEY"))

	s := server.NewMCPServer(
		"steelcrawl",
		"0.3.0",
		server.WithToolCapabilities(false),
	)
	registerTools(s, c)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func registerTools(s *server.MCPServer, c *apiClient) {
	s.AddTool(mcp.NewTool("list_sites",
		mcp.WithDescription("List the steel price sites that can be crawled, with their output columns."),
	), handleListSites(c))

	s.AddTool(mcp.NewTool("open_session",
		mcp.WithDescription("Open the browser on a site's listing page. If login_required comes back true, a human must log in through the browser window before crawling."),
		mcp.WithString("site",
			mcp.Required(),
			mcp.Description("Site name from list_sites"),
		),
		mcp.WithString("url",
			mcp.Description("Override the site's entry URL"),
		),
	), handleOpenSession(c))

	s.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Report whether a session is open, which page it shows and whether it still asks for a login."),
	), handleSessionStatus(c))

	s.AddTool(mcp.NewTool("start_crawl",
		mcp.WithDescription("Page through the open session's listing and collect price rows. Waits for the crawl to finish unless wait is false."),
		mcp.WithString("site",
			mcp.Required(),
			mcp.Description("Site name; must match the open session"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Stop after this many pages (default: until the listing ends)"),
		),
		mcp.WithBoolean("skip_init",
			mcp.Description("Start on the page the browser already shows (default: true)"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the crawl to finish (default: true)"),
		),
	), handleStartCrawl(c))

	s.AddTool(mcp.NewTool("crawl_status",
		mcp.WithDescription("Show the progress of a crawl job and a preview of its rows."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Job ID returned by start_crawl"),
		),
	), handleCrawlStatus(c))

	s.AddTool(mcp.NewTool("cancel_crawl",
		mcp.WithDescription("Stop a running crawl. Rows gathered so far are kept and exported."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Job ID returned by start_crawl"),
		),
	), handleCancelCrawl(c))
}

func handleListSites(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sites, err := c.Sites(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var sb strings.Builder
		for _, s := range sites {
			fmt.Fprintf(&sb, "%s (%s)\n  entry: %s\n  fields: %s\n", s.Name, s.Title, s.EntryURL, strings.Join(s.Fields, ", "))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleOpenSession(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		site, err := request.RequireString("site")
		if err != nil {
			return mcp.NewToolResultError("site is required"), nil
		}
		st, err := c.OpenSession(ctx, models.SessionRequest{
			Site: site,
			URL:  request.GetString("url", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatSession(st)), nil
	}
}

func handleSessionStatus(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := c.Session(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatSession(st)), nil
	}
}

func handleStartCrawl(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		site, err := request.RequireString("site")
		if err != nil {
			return mcp.NewToolResultError("site is required"), nil
		}

		started, err := c.StartCrawl(ctx, models.CrawlRequest{
			Site:     site,
			MaxPages: request.GetInt("max_pages", 0),
			SkipInit: request.GetBool("skip_init", true),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !request.GetBool("wait", true) {
			return mcp.NewToolResultText(fmt.Sprintf("Crawl %s started; poll crawl_status for progress.", started.ID)), nil
		}

		st, err := c.WaitCrawl(ctx, started.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling crawl %s failed: %v", started.ID, err)), nil
		}
		return mcp.NewToolResultText(formatCrawl(st)), nil
	}
}

func handleCrawlStatus(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		st, err := c.Crawl(ctx, id, true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatCrawl(st)), nil
	}
}

func handleCancelCrawl(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		if _, err := c.CancelCrawl(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		// Give the walk a moment to save what it has.
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		st, err := c.WaitCrawl(waitCtx, id)
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("Cancel requested for %s.", id)), nil
		}
		return mcp.NewToolResultText(formatCrawl(st)), nil
	}
}

func formatSession(st models.SessionState) string {
	if !st.Open {
		return "No session is open."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session on %s\nPage: %s\n", st.Site, st.URL)
	if st.Busy {
		sb.WriteString("A crawl is running.\n")
	}
	if st.LoginRequired {
		sb.WriteString("The page asks for a login: log in through the browser window, then start the crawl.\n")
	}
	return sb.String()
}

func formatCrawl(st models.CrawlStatusResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Crawl %s (%s): %s", st.ID, st.Site, st.Status)
	if st.StopReason != "" {
		fmt.Fprintf(&sb, ", stopped: %s", st.StopReason)
	}
	fmt.Fprintf(&sb, "\nPage %d", st.Page)
	if st.TotalPages > 0 {
		fmt.Fprintf(&sb, " of %d", st.TotalPages)
	}
	fmt.Fprintf(&sb, ", %d records\n", st.Count)
	if st.Error != nil {
		fmt.Fprintf(&sb, "Error: [%s] %s\n", st.Error.Code, st.Error.Message)
	}

	if len(st.Records) == 0 {
		return sb.String()
	}
	sb.WriteString("\n" + strings.Join(st.Fields, " | ") + "\n")
	for i, rec := range st.Records {
		if i == previewRows {
			fmt.Fprintf(&sb, "... %d more\n", len(st.Records)-previewRows)
			break
		}
		cells := make([]string, len(st.Fields))
		for j, f := range st.Fields {
			cells[j] = rec[f]
		}
		sb.WriteString(strings.Join(cells, " | ") + "\n")
	}
	return sb.String()
}
