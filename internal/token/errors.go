package token

import "errors"

// Verification failures, ordered roughly by the verify pipeline.
var (
	// ErrRevoked means the token is blacklisted, regardless of validity.
	ErrRevoked = errors.New("token: revoked")
	// ErrMalformed means the string is not a decodable token.
	ErrMalformed = errors.New("token: malformed")
	// ErrSignatureInvalid means the signature does not verify against the shared secret.
	ErrSignatureInvalid = errors.New("token: signature invalid")
	// ErrWrongType means an access token was presented where a refresh token
	// was expected, or vice versa.
	ErrWrongType = errors.New("token: wrong type")
	// ErrExpired means the exp claim has passed.
	ErrExpired = errors.New("token: expired")
	// ErrNoSubject means the sub claim is missing or empty.
	ErrNoSubject = errors.New("token: missing subject")
)
