package campaign_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/outreach/internal/campaign"
	"github.com/teemow/outreach/internal/history"
	"github.com/teemow/outreach/internal/server"
	"github.com/teemow/outreach/internal/tools/common"
)

const defaultHistoryLimit = 20

// RegisterCampaignTools registers the campaign tools with the MCP server.
func RegisterCampaignTools(s *mcpserver.MCPServer, sc *server.CampaignContext, readOnly bool) error {
	statusTool := mcp.NewTool("campaign_status",
		mcp.WithDescription("Show reply tracking state and the number of pending and responded contacts"),
	)
	s.AddTool(statusTool, common.InstrumentedToolHandler("campaign_status", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleStatus(ctx, request, sc)
		}))

	historyTool := mcp.NewTool("campaign_history",
		mcp.WithDescription("List recent sends and replies, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records (default: 20)"),
		),
		mcp.WithString("kind",
			mcp.Description("Only records of this kind: sent, send_failed or replied"),
		),
		mcp.WithString("email",
			mcp.Description("Only records for this contact email"),
		),
	)
	s.AddTool(historyTool, common.InstrumentedToolHandler("campaign_history", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleHistory(ctx, request, sc)
		}))

	suggestTool := mcp.NewTool("campaign_suggest",
		mcp.WithDescription("Ask the language model for 5 improved subject lines and 5 improved messages based on a draft. Messages keep the {{influencer_name}} placeholder."),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Draft subject line"),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Draft email message"),
		),
	)
	s.AddTool(suggestTool, common.InstrumentedToolHandler("campaign_suggest", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSuggest(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	checkTool := mcp.NewTool("campaign_check_replies",
		mcp.WithDescription("Check the inbox once and move contacts who replied from pending to responded"),
	)
	s.AddTool(checkTool, common.InstrumentedToolHandler("campaign_check_replies", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckReplies(ctx, request, sc)
		}))

	startTool := mcp.NewTool("campaign_start_tracking",
		mcp.WithDescription("Start checking for replies periodically in the background"),
	)
	s.AddTool(startTool, common.InstrumentedToolHandler("campaign_start_tracking", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleStartTracking(ctx, request, sc)
		}))

	stopTool := mcp.NewTool("campaign_stop_tracking",
		mcp.WithDescription("Stop the background reply tracking"),
	)
	s.AddTool(stopTool, common.InstrumentedToolHandler("campaign_stop_tracking", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleStopTracking(ctx, request, sc)
		}))

	sendTool := mcp.NewTool("campaign_send",
		mcp.WithDescription("Send the selected subject and message to every pending contact"),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true; sends real email to all pending contacts"),
		),
	)
	s.AddTool(sendTool, common.InstrumentedToolHandler("campaign_send", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSend(ctx, request, sc)
		}))

	selectTool := mcp.NewTool("campaign_save_selection",
		mcp.WithDescription("Save the subject and message used by campaign_send"),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Subject line; may contain {{influencer_name}}"),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Message body; may contain {{influencer_name}}"),
		),
		mcp.WithNumber("subjectNumber",
			mcp.Description("Number of the chosen suggestion, if any"),
		),
		mcp.WithNumber("messageNumber",
			mcp.Description("Number of the chosen suggestion, if any"),
		),
	)
	s.AddTool(selectTool, common.InstrumentedToolHandler("campaign_save_selection", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSaveSelection(ctx, request, sc)
		}))

	clearTool := mcp.NewTool("campaign_clear_responded",
		mcp.WithDescription("Reset the responded contacts file to its header"),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true; removes all responded contacts"),
		),
	)
	s.AddTool(clearTool, common.InstrumentedToolHandler("campaign_clear_responded", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleClearResponded(ctx, request, sc)
		}))

	return nil
}

func handleStatus(_ context.Context, _ mcp.CallToolRequest, sc *server.CampaignContext) (*mcp.CallToolResult, error) {
	st, err := sc.Status()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read campaign status: %v", err)), nil
	}
	result, _ := json.MarshalIndent(st, "", "  ")
	return mcp.NewToolResultText(string(result)), nil
}

func handleCheckReplies(ctx context.Context, _ mcp.CallToolRequest, sc *server.CampaignContext) (*mcp.CallToolResult, error) {
	res, err := sc.CheckReplies(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Reply check failed: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString(res.Line)
	for _, email := range res.Migrated {
		b.WriteString("\n- ")
		b.WriteString(email)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleStartTracking(_ context.Context, _ mcp.CallToolRequest, sc *server.CampaignContext) (*mcp.CallToolResult, error) {
	started, err := sc.StartTracking()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !started {
		return mcp.NewToolResultText("Reply tracking is already active"), nil
	}
	interval := sc.Tracker().Config().Interval
	return mcp.NewToolResultText(fmt.Sprintf("Reply tracking started; checking every %s", interval)), nil
}

func handleStopTracking(_ context.Context, _ mcp.CallToolRequest, sc *server.CampaignContext) (*mcp.CallToolResult, error) {
	if !sc.StopTracking() {
		return mcp.NewToolResultText("Reply tracking is not active"), nil
	}
	return mcp.NewToolResultText("Reply tracking stopped"), nil
}

func handleSend(ctx context.Context, request mcp.CallToolRequest, sc *server.CampaignContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if confirm, _ := args["confirm"].(bool); !confirm {
		return mcp.NewToolResultError("confirm must be true to send the campaign"), nil
	}

	report, err := sc.Send(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send campaign: %v", err)), nil
	}
	return mcp.NewToolResultText(report.Summary()), nil
}

func handleSuggest(ctx context.Context, request mcp.CallToolRequest, sc *server.CampaignContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	subject, _ := args["subject"].(string)
	message, _ := args["message"].(string)
	if subject == "" || message == "" {
		return mcp.NewToolResultError("subject and message are required"), nil
	}

	suggestions, err := sc.Suggest(ctx, subject, message)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate suggestions: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("Subject suggestions:\n")
	for i, s := range suggestions.Subjects {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nMessage suggestions:\n")
	for i, m := range suggestions.Messages {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, m)
	}
	b.WriteString("Call campaign_save_selection with the chosen subject and message.")
	return mcp.NewToolResultText(b.String()), nil
}

func handleSaveSelection(_ context.Context, request mcp.CallToolRequest, sc *server.CampaignContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sel := campaign.Selection{}
	sel.Subject, _ = args["subject"].(string)
	sel.Message, _ = args["message"].(string)
	if n, ok := args["subjectNumber"].(float64); ok {
		sel.SubjectNumber = int(n)
	}
	if n, ok := args["messageNumber"].(float64); ok {
		sel.MessageNumber = int(n)
	}

	if err := sc.SaveSelection(sel); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save selection: %v", err)), nil
	}
	return mcp.NewToolResultText("Selection saved; campaign_send will use it"), nil
}

func handleClearResponded(_ context.Context, request mcp.CallToolRequest, sc *server.CampaignContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if confirm, _ := args["confirm"].(bool); !confirm {
		return mcp.NewToolResultError("confirm must be true to clear responded contacts"), nil
	}
	if err := sc.ClearResponded(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to clear responded contacts: %v", err)), nil
	}
	return mcp.NewToolResultText("Responded contacts cleared"), nil
}

func handleHistory(ctx context.Context, request mcp.CallToolRequest, sc *server.CampaignContext) (*mcp.CallToolResult, error) {
	hist := sc.History()
	if hist == nil {
		return mcp.NewToolResultError("history is not enabled"), nil
	}

	args := request.GetArguments()
	filter := history.Filter{Limit: defaultHistoryLimit}
	if n, ok := args["limit"].(float64); ok && n > 0 {
		filter.Limit = int(n)
	}
	if kind, ok := args["kind"].(string); ok && kind != "" {
		switch history.Kind(kind) {
		case history.KindSent, history.KindSendFailed, history.KindReplied:
			filter.Kind = history.Kind(kind)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", kind)), nil
		}
	}
	if email, ok := args["email"].(string); ok {
		filter.Email = email
	}

	events, err := hist.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read history: %v", err)), nil
	}
	result, _ := json.MarshalIndent(events, "", "  ")
	return mcp.NewToolResultText(string(result)), nil
}
