// Package loginflow authenticates the identity provider's form_post callback.
//
// The callback runs as an ordered list of steps sharing a FlowContext:
//
//	validating -> token_verification -> claims_resolution -> session_establishment -> success
//
// The first failing step stops the flow and the Result reports the failed
// stage with a structured error. The validation step compares the posted
// state with the one stored for the browser before any token is parsed.
package loginflow
