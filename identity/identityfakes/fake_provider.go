package identityfakes

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-gateway-bridge/identity"
	"github.com/jrsteele09/go-gateway-bridge/internal/utils"
)

var _ identity.Provider = (*FakeProvider)(nil)

// FakeProvider is a scripted identity.Provider that records every call.
// Unset funcs fail with ErrNotScripted.
type FakeProvider struct {
	InitiateAuthFunc  func(ctx context.Context, input identity.InitiateAuthInput) (*identity.InitiateAuthOutput, error)
	SignUpFunc        func(ctx context.Context, input identity.SignUpInput) (*identity.SignUpOutput, error)
	ConfirmSignUpFunc func(ctx context.Context, input identity.ConfirmSignUpInput) error

	lock               sync.Mutex
	initiateAuthCalls  []identity.InitiateAuthInput
	signUpCalls        []identity.SignUpInput
	confirmSignUpCalls []identity.ConfirmSignUpInput
}

var ErrNotScripted = errors.New("fake provider: call not scripted")

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

func (p *FakeProvider) InitiateAuth(ctx context.Context, input identity.InitiateAuthInput) (*identity.InitiateAuthOutput, error) {
	p.lock.Lock()
	p.initiateAuthCalls = append(p.initiateAuthCalls, input)
	fn := p.InitiateAuthFunc
	p.lock.Unlock()

	if fn == nil {
		return nil, ErrNotScripted
	}
	return fn(ctx, input)
}

func (p *FakeProvider) SignUp(ctx context.Context, input identity.SignUpInput) (*identity.SignUpOutput, error) {
	p.lock.Lock()
	p.signUpCalls = append(p.signUpCalls, input)
	fn := p.SignUpFunc
	p.lock.Unlock()

	if fn == nil {
		return nil, ErrNotScripted
	}
	return fn(ctx, input)
}

func (p *FakeProvider) ConfirmSignUp(ctx context.Context, input identity.ConfirmSignUpInput) error {
	p.lock.Lock()
	p.confirmSignUpCalls = append(p.confirmSignUpCalls, input)
	fn := p.ConfirmSignUpFunc
	p.lock.Unlock()

	if fn == nil {
		return ErrNotScripted
	}
	return fn(ctx, input)
}

func (p *FakeProvider) InitiateAuthCalls() []identity.InitiateAuthInput {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]identity.InitiateAuthInput(nil), p.initiateAuthCalls...)
}

func (p *FakeProvider) SignUpCalls() []identity.SignUpInput {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]identity.SignUpInput(nil), p.signUpCalls...)
}

func (p *FakeProvider) ConfirmSignUpCalls() []identity.ConfirmSignUpInput {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]identity.ConfirmSignUpInput(nil), p.confirmSignUpCalls...)
}

// Returns scripts InitiateAuth to always answer with out.
func (p *FakeProvider) Returns(out *identity.InitiateAuthOutput) *FakeProvider {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.InitiateAuthFunc = func(context.Context, identity.InitiateAuthInput) (*identity.InitiateAuthOutput, error) {
		return out, nil
	}
	return p
}

// Fails scripts InitiateAuth to always fail with err.
func (p *FakeProvider) Fails(err error) *FakeProvider {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.InitiateAuthFunc = func(context.Context, identity.InitiateAuthInput) (*identity.InitiateAuthOutput, error) {
		return nil, err
	}
	return p
}

// AuthResult builds a successful InitiateAuth answer. An empty refreshToken
// is omitted, as providers do on refresh flows.
func AuthResult(accessToken, idToken, refreshToken string, expiresIn int) *identity.InitiateAuthOutput {
	result := &identity.AuthenticationResult{
		AccessToken: accessToken,
		IdToken:     idToken,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	}
	if refreshToken != "" {
		result.RefreshToken = utils.Ptr(refreshToken)
	}
	return &identity.InitiateAuthOutput{AuthenticationResult: result}
}
