package google_tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/outreach/internal/google"
	"github.com/teemow/outreach/internal/logging"
	"github.com/teemow/outreach/internal/server"
	"github.com/teemow/outreach/internal/tools/common"
)

// RegisterGoogleTools registers the Google OAuth tools with the MCP server.
func RegisterGoogleTools(s *mcpserver.MCPServer, sc *server.CampaignContext, auth *google.Auth) error {
	if auth == nil {
		return fmt.Errorf("google auth is required")
	}

	getAuthURLTool := mcp.NewTool("google_get_auth_url",
		mcp.WithDescription("Get the OAuth URL to authorize Gmail access for sending the campaign and tracking replies"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default')"),
		),
	)
	s.AddTool(getAuthURLTool, common.InstrumentedToolHandler("google_get_auth_url", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetAuthURL(ctx, request, auth)
		}))

	saveAuthCodeTool := mcp.NewTool("google_save_auth_code",
		mcp.WithDescription("Save the OAuth authorization code to complete Gmail authorization"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default')"),
		),
		mcp.WithString("authCode",
			mcp.Required(),
			mcp.Description("The authorization code from Google OAuth"),
		),
	)
	s.AddTool(saveAuthCodeTool, common.InstrumentedToolHandler("google_save_auth_code", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSaveAuthCode(ctx, request, auth, sc.Logger())
		}))

	return nil
}

func handleGetAuthURL(_ context.Context, request mcp.CallToolRequest, auth *google.Auth) (*mcp.CallToolResult, error) {
	account := common.GetAccountFromArgs(request.GetArguments())
	if err := google.ValidateAccountName(account); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if auth.HasToken(account) {
		return mcp.NewToolResultText(fmt.Sprintf("Account %q is already authorized.", account)), nil
	}

	result := fmt.Sprintf(`To authorize Gmail access for account %q:

1. Visit this URL in your browser:
   %s

2. Sign in and grant access
3. Copy the authorization code
4. Call google_save_auth_code with the code and account name`, account, auth.AuthURL(account))

	return mcp.NewToolResultText(result), nil
}

func handleSaveAuthCode(ctx context.Context, request mcp.CallToolRequest, auth *google.Auth, logger *slog.Logger) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	authCode, ok := args["authCode"].(string)
	if !ok || authCode == "" {
		return mcp.NewToolResultError("authCode is required"), nil
	}

	logger = logging.WithAccount(logger, account)
	logger.Info("exchanging authorization code", slog.String("code", logging.SanitizeToken(authCode)))
	if err := auth.Exchange(ctx, account, authCode); err != nil {
		logger.Warn("authorization code exchange failed", logging.Err(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save authorization code for account %s: %v", account, err)), nil
	}

	logger.Info("gmail token saved")
	return mcp.NewToolResultText(fmt.Sprintf("Authorization successful for account %q. Gmail token saved.", account)), nil
}
