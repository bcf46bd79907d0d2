// Package tokenstore holds the tokens and client registration obtained by a
// login, behind a repository interface so the in-memory default can be
// swapped for a persistent store.
package tokenstore

import (
	"errors"
	"time"
)

// Tokens is the credential set produced by a completed login.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Scope        string
}

// ClientInfo is the OAuth client registration in use for a login session.
type ClientInfo struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// ErrNotFound is returned when no entry exists for the requested subject.
var ErrNotFound = errors.New("tokenstore: not found")

type Repo interface {
	GetTokens(subject string) (*Tokens, error)
	SetTokens(subject string, tokens *Tokens) error
	GetClientInfo(subject string) (*ClientInfo, error)
	SetClientInfo(subject string, info *ClientInfo) error
	Delete(subject string) error
}
