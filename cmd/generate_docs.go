package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/outreach/internal/contacts"
	"github.com/teemow/outreach/internal/google"
	"github.com/teemow/outreach/internal/mail"
	"github.com/teemow/outreach/internal/server"
	"github.com/teemow/outreach/internal/tools/campaign_tools"
	"github.com/teemow/outreach/internal/tools/google_tools"
)

// docsClientJSON is a placeholder OAuth client; generate-docs only needs the
// tool definitions.
const docsClientJSON = `{"installed":{"client_id":"docs","client_secret":"docs","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
This command introspects the registered tools and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool implementations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	tools, err := listTools()
	if err != nil {
		return err
	}

	// Generate markdown documentation
	markdown := generateToolsMarkdown(tools)

	// Write to output
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Print(markdown)
	}

	return nil
}

// listTools registers every tool, including write operations, against a
// campaign context that never touches real files or mail.
func listTools() ([]mcp.Tool, error) {
	dir, err := os.MkdirTemp("", "outreach-docs")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	sc, err := server.NewCampaignContext(context.Background(), server.Config{
		Store: contacts.NewStore(filepath.Join(dir, "pending.csv"), filepath.Join(dir, "responded.csv")),
		Mail: func(context.Context) (mail.Service, error) {
			return nil, errors.New("mail is not available while generating docs")
		},
		SelectionPath: filepath.Join(dir, "selection.json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign context: %w", err)
	}
	defer func() {
		_ = sc.Shutdown()
	}()

	auth, err := google.NewAuthFromJSON([]byte(docsClientJSON), google.NewTokenStore(dir))
	if err != nil {
		return nil, err
	}

	// Note: mcp.Implementation has Title field but WithTitle() ServerOption not available in v0.43.0
	mcpSrv := mcpserver.NewMCPServer("outreach", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := campaign_tools.RegisterCampaignTools(mcpSrv, sc, false); err != nil {
		return nil, fmt.Errorf("failed to register campaign tools: %w", err)
	}
	if err := google_tools.RegisterGoogleTools(mcpSrv, sc, auth); err != nil {
		return nil, fmt.Errorf("failed to register Google tools: %w", err)
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}
	return tools, nil
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document provides a complete reference of all tools available when running outreach as an MCP server.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	// Group tools by category
	toolsByCategory := groupToolsByCategory(tools)

	// Table of contents
	sb.WriteString("## Table of Contents\n\n")
	categories := slices.Sorted(maps.Keys(toolsByCategory))

	for _, category := range categories {
		anchor := strings.ToLower(strings.ReplaceAll(category, " ", "-"))
		fmt.Fprintf(&sb, "- [%s](#%s)\n", category, anchor)
	}
	sb.WriteString("\n")

	// Safety note
	sb.WriteString("## Read-Only Mode\n\n")
	sb.WriteString("Without `--yolo` only `campaign_status`, `campaign_history`, `campaign_suggest` and the Google authorization tools are registered. ")
	sb.WriteString("Tools that send email or change the contact files need `--yolo`.\n\n")

	// Generate documentation for each category
	for _, category := range categories {
		categoryTools := toolsByCategory[category]
		sort.Slice(categoryTools, func(i, j int) bool {
			return categoryTools[i].Name < categoryTools[j].Name
		})

		fmt.Fprintf(&sb, "## %s\n\n", category)

		for _, tool := range categoryTools {
			sb.WriteString(generateToolMarkdown(tool))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func groupToolsByCategory(tools []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)

	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		categories[category] = append(categories[category], tool)
	}

	return categories
}

func getCategoryFromToolName(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) == 0 {
		return "Other"
	}

	prefix := parts[0]
	switch prefix {
	case "campaign":
		return "Campaign Tools"
	case "google":
		return "Google Authorization Tools"
	default:
		return "Other"
	}
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	// Tool name
	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)

	// Description
	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}

	// Input schema
	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		propNames := slices.Sorted(maps.Keys(tool.InputSchema.Properties))

		for _, name := range propNames {
			prop := tool.InputSchema.Properties[name]
			isRequired := slices.Contains(tool.InputSchema.Required, name)

			requiredStr := "optional"
			if isRequired {
				requiredStr = "required"
			}

			// Get property type and description from the property map
			propMap, ok := prop.(map[string]interface{})
			if !ok {
				continue
			}

			propType := getPropertyType(propMap)

			fmt.Fprintf(&sb, "- `%s` (%s): ", name, requiredStr)

			// Get description
			if desc, ok := propMap["description"].(string); ok {
				sb.WriteString(desc)
			} else {
				fmt.Fprintf(&sb, "%s parameter", propType)
			}

			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]interface{}) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}
