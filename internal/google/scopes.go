package google

import gmail "google.golang.org/api/gmail/v1"

// GmailReadonlyScope grants read access to messages and settings.
const GmailReadonlyScope = gmail.GmailReadonlyScope

// DefaultOAuthScopes are the scopes requested on the consent screen.
// Retrieval and analysis never modify the mailbox, so read-only is enough.
var DefaultOAuthScopes = []string{
	GmailReadonlyScope,
}
