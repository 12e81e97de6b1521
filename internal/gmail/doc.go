// Package gmail retrieves the latest unread inbox message through the Gmail API.
//
// Client lists unread inbox messages, selects the most recently received one
// and reduces it to a subject and a plain-text body. PlaceholderRetriever
// returns a fixed message and is used when live retrieval is switched off.
//
// Both require an authorized session: without client settings or a stored
// credential they fail with an error wrapping apperr.ErrNotAuthorized before
// any network call.
package gmail
