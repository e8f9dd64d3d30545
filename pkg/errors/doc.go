// Package errors provides structured error handling with error codes for azure-login.
//
// Every failure on the login path carries a typed ErrorCode so the callback
// handler can log the precise cause while showing the user a generic message.
//
// # Basic Usage
//
//	import "github.com/tendant/azure-login/pkg/errors"
//
//	err := errors.New(errors.ErrCodeInvalidIssuer, "issuer does not match metadata")
//	err := errors.Wrap(httpErr, errors.ErrCodeMetadataFetch, "failed to fetch openid configuration")
//	err := errors.InvalidNonce("expired")
//
// # Error Codes
//
// Provider metadata:
//   - ErrCodeMetadataFetch
//   - ErrCodeSigningKeysFetch
//   - ErrCodeAuthorizationURLUnavailable
//
// ID token:
//   - ErrCodeTokenDecode
//   - ErrCodeTokenExpired
//   - ErrCodeTokenNotYetValid
//   - ErrCodeTokenIssuedInFuture
//   - ErrCodeInvalidIssuer
//   - ErrCodeInvalidAudience
//   - ErrCodeInvalidNonce
//   - ErrCodeMissingRequiredClaim
//
// Callback:
//   - ErrCodeInvalidState
//   - ErrCodeAuthenticationDenied
//   - ErrCodeRefererInvalid
//
// # Error Inspection
//
//	if errors.IsCode(err, errors.ErrCodeTokenExpired) {
//		// ...
//	}
//	details := errors.GetDetails(err)
//
// From converts any error into a structured Error, treating unknown errors
// as ErrCodeInternal.
package errors
