package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) String() string {
	if e == nil {
		return "unknown error"
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// listingsResponse mirrors the partfit listings response.
type listingsResponse struct {
	Success  bool   `json:"success"`
	PartID   string `json:"part_id"`
	Listings []struct {
		Index        int    `json:"index"`
		PartNumber   string `json:"part_number"`
		Manufacturer string `json:"manufacturer"`
		Category     string `json:"category"`
		InfoURL      string `json:"info_url"`
	} `json:"listings"`
	Error *apiError `json:"error"`
}

// specificationsResponse mirrors the partfit specifications response.
type specificationsResponse struct {
	Success bool   `json:"success"`
	InfoURL string `json:"info_url"`
	Rows    []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"rows"`
	Error *apiError `json:"error"`
}

// fitmentJobResponse mirrors the partfit fitment submission response.
type fitmentJobResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Error  *apiError `json:"error"`
}

// fitmentStatusResponse mirrors the partfit fitment status response.
type fitmentStatusResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Summary        string `json:"summary"`
	Specifications []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"specifications"`
	Files []string  `json:"files"`
	Error *apiError `json:"error"`
}

func main() {
	apiURL := os.Getenv("PARTFIT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PARTFIT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PARTFIT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"partfit",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	findListingsTool := mcp.NewTool("find_listings",
		mcp.WithDescription("Search the parts catalog for a part number or SKU and list the matching listings (manufacturer, category, info page). Use the listing index with resolve_fitment."),
		mcp.WithString("part_id",
			mcp.Required(),
			mcp.Description("The part number or SKU to search for"),
		),
	)
	s.AddTool(findListingsTool, handleFindListings(apiURL, apiKey))

	resolveFitmentTool := mcp.NewTool("resolve_fitment",
		mcp.WithDescription("Resolve which vehicles a catalog listing fits, engine by engine, and return the compatibility summary (position and engine notes per vehicle). Slow: drives a real browser through every engine variant."),
		mcp.WithString("part_id",
			mcp.Required(),
			mcp.Description("The part number or SKU whose listing to resolve"),
		),
		mcp.WithNumber("index",
			mcp.Description("Listing index from find_listings (default: 0)"),
		),
		mcp.WithBoolean("specifications",
			mcp.Description("Also extract the listing's specification sheet"),
		),
	)
	s.AddTool(resolveFitmentTool, handleResolveFitment(apiURL, apiKey))

	getSpecificationsTool := mcp.NewTool("get_specifications",
		mcp.WithDescription("Read a listing's specification table and return every measurement in both inches and millimeters."),
		mcp.WithString("info_url",
			mcp.Required(),
			mcp.Description("The listing's info page URL, as returned by find_listings"),
		),
	)
	s.AddTool(getSpecificationsTool, handleGetSpecifications(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the partfit API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until the job has finished or ctx
// is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "queued" && status.Status != "processing" {
				return body, nil
			}
		}
	}
}

func handleFindListings(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		partID, err := request.RequireString("part_id")
		if err != nil {
			return mcp.NewToolResultError("part_id is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/listings", map[string]string{"part_id": partID})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listings request failed: %v", err)), nil
		}

		var resp listingsResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse listings response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(resp.Error.String()), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Found %d listings for %s:\n\n", len(resp.Listings), resp.PartID)
		for _, l := range resp.Listings {
			fmt.Fprintf(&sb, "[%d] %s %s (%s)\n", l.Index, l.Manufacturer, l.PartNumber, l.Category)
			if l.InfoURL != "" {
				fmt.Fprintf(&sb, "    info: %s\n", l.InfoURL)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleResolveFitment(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		partID, err := request.RequireString("part_id")
		if err != nil {
			return mcp.NewToolResultError("part_id is required"), nil
		}

		payload := map[string]any{
			"part_id":        partID,
			"index":          request.GetInt("index", 0),
			"specifications": request.GetBool("specifications", false),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/fitment", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fitment request failed: %v", err)), nil
		}

		var jobResp fitmentJobResponse
		if err := json.Unmarshal(respBody, &jobResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse fitment response: %v", err)), nil
		}
		if jobResp.ID == "" {
			return mcp.NewToolResultError("fitment job creation failed: " + jobResp.Error.String()), nil
		}

		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/fitment/"+jobResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling fitment job failed: %v", err)), nil
		}

		var status fitmentStatusResponse
		if err := json.Unmarshal(resultBody, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse fitment status: %v", err)), nil
		}
		if status.Status != "completed" {
			return mcp.NewToolResultError(fmt.Sprintf("fitment job %s %s: %s", status.ID, status.Status, status.Error.String())), nil
		}

		var sb strings.Builder
		sb.WriteString(status.Summary)
		if len(status.Specifications) > 0 {
			sb.WriteString("\nSpecifications:\n")
			for _, row := range status.Specifications {
				fmt.Fprintf(&sb, "  %s: %s\n", row.Label, row.Value)
			}
		}
		if len(status.Files) > 0 {
			sb.WriteString("\nFiles:\n")
			for _, f := range status.Files {
				sb.WriteString("  " + f + "\n")
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleGetSpecifications(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		infoURL, err := request.RequireString("info_url")
		if err != nil {
			return mcp.NewToolResultError("info_url is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/specifications", map[string]string{"info_url": infoURL})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("specifications request failed: %v", err)), nil
		}

		var resp specificationsResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse specifications response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(resp.Error.String()), nil
		}
		if len(resp.Rows) == 0 {
			return mcp.NewToolResultText("No specification table found at " + resp.InfoURL), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Specifications from %s:\n\n", resp.InfoURL)
		for _, row := range resp.Rows {
			fmt.Fprintf(&sb, "%s: %s\n", row.Label, row.Value)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
