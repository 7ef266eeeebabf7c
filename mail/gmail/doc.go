// Package gmail implements mail.Session on the Gmail REST API.
//
// Authentication uses an installed-app OAuth client secrets file and a token
// persisted either as a JSON file (FileTokenStore) or in the OS keyring
// (credential.TokenStore). A missing or rejected token surfaces as
// core.ErrNotAuthenticated.
package gmail
