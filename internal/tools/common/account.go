package common

// DefaultAccount is used when a request names no account.
const DefaultAccount = "default"

// GetAccountFromArgs returns the "account" argument, or DefaultAccount.
func GetAccountFromArgs(args map[string]interface{}) string {
	if accountVal, ok := args["account"].(string); ok && accountVal != "" {
		return accountVal
	}
	return DefaultAccount
}
