package common

const (
	// TokenType is reported to callers with every issued token pair.
	TokenType = "Bearer"

	// AudienceInternal is the audience of tokens issued by sign-in and setup.
	AudienceInternal = "internal"

	// SetupKey is the config entry flipped once the first administrator exists.
	SetupKey = "is_setup"
	// SetupDone is the value stored under SetupKey after bootstrap.
	SetupDone = "1"
)
