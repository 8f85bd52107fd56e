// Package bridge attaches a valid bearer token to every JSON-RPC call made to
// the gateway, logging in or refreshing through the session as needed.
package bridge

import (
	"context"

	"github.com/jrsteele09/go-gateway-bridge/rpc"
	"github.com/jrsteele09/go-gateway-bridge/token"
)

// Session is the part of auth.Session the bridge depends on.
type Session interface {
	IsAuthenticated() bool
	InteractiveLogin(ctx context.Context) (*token.Token, error)
	GetValidToken(ctx context.Context) (string, error)
	Logout()
}

// Bridge is a JSON-RPC client whose token source is the session. The embedded
// client's SendRequest, ListTools, CallTool and Chat all authenticate first.
type Bridge struct {
	*rpc.Client
	session Session
}

// New creates a bridge posting to endpoint on behalf of session.
func New(endpoint string, session Session, options ...rpc.Option) *Bridge {
	b := &Bridge{session: session}
	b.Client = rpc.New(endpoint, b, options...)
	return b
}

// Authenticate returns a bearer token for the next call. A session without a
// usable token is logged in interactively first. A failed login is returned
// as is and nothing is sent.
func (b *Bridge) Authenticate(ctx context.Context) (string, error) {
	if !b.session.IsAuthenticated() {
		if _, err := b.session.InteractiveLogin(ctx); err != nil {
			return "", err
		}
	}
	return b.session.GetValidToken(ctx)
}

// Logout discards the session's token.
func (b *Bridge) Logout() {
	b.session.Logout()
}
