// Package jwt issues and verifies the short-lived access tokens handed out at
// login and refresh. Tokens carry the owner id, session id and role; session
// authority stays with the session table, so a token is only a cache of it.
package jwt
