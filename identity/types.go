package identity

// AuthFlow names the authentication flow requested from the identity provider.
type AuthFlow string

const (
	// UserPasswordAuth exchanges a username and password for a token set.
	// Parameters: USERNAME, PASSWORD
	UserPasswordAuth AuthFlow = "USER_PASSWORD_AUTH"

	// RefreshTokenAuth exchanges a refresh token for a new access and id token.
	// Parameters: REFRESH_TOKEN
	// The provider may or may not return a new refresh token.
	RefreshTokenAuth AuthFlow = "REFRESH_TOKEN_AUTH"
)

// Keys used in InitiateAuthInput.AuthParameters
const (
	ParamUsername     = "USERNAME"
	ParamPassword     = "PASSWORD"
	ParamRefreshToken = "REFRESH_TOKEN"
	ParamSecretHash   = "SECRET_HASH"
)

// InitiateAuthInput is the request body for an InitiateAuth call.
type InitiateAuthInput struct {
	AuthFlow       AuthFlow          `json:"AuthFlow"`
	ClientId       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

// InitiateAuthOutput is the provider's answer to InitiateAuth. A nil
// AuthenticationResult means the provider issued no tokens (for example a
// challenge was returned instead) and is treated as a failed login.
type InitiateAuthOutput struct {
	AuthenticationResult *AuthenticationResult `json:"AuthenticationResult,omitempty"`
	ChallengeName        string                `json:"ChallengeName,omitempty"`
	Session              string                `json:"Session,omitempty"`
}

// AuthenticationResult carries the tokens issued by a successful flow.
type AuthenticationResult struct {
	// AccessToken is sent as "Authorization: Bearer <AccessToken>" to the gateway.
	AccessToken string `json:"AccessToken"`

	// IdToken is the OpenID Connect identity token (user claims).
	IdToken string `json:"IdToken"`

	// RefreshToken is omitted on most refresh flows.
	RefreshToken *string `json:"RefreshToken,omitempty"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"ExpiresIn"`

	TokenType string `json:"TokenType,omitempty"`
}

// AttributeType is a single user attribute supplied at sign-up.
type AttributeType struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type SignUpInput struct {
	ClientId       string          `json:"ClientId"`
	Username       string          `json:"Username"`
	Password       string          `json:"Password"`
	SecretHash     string          `json:"SecretHash,omitempty"`
	UserAttributes []AttributeType `json:"UserAttributes,omitempty"`
}

type SignUpOutput struct {
	UserSub       string `json:"UserSub"`
	UserConfirmed bool   `json:"UserConfirmed"`
}

type ConfirmSignUpInput struct {
	ClientId         string `json:"ClientId"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
	SecretHash       string `json:"SecretHash,omitempty"`
}

// Credentials are held only for the duration of a login call.
type Credentials struct {
	Username string
	Password string
}
