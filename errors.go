// Copyright The Uptane Project Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uptane defines the error taxonomy shared by the Secondary ECU
// client packages. Callers distinguish failure classes with errors.As
// rather than by matching message text.
package uptane

// FormatError is used when a single input value violates its schema,
// e.g. a malformed identifier, key, timestamp, or firmware fileinfo.
// It is always raised before any state mutation.
type FormatError struct {
	// Field names the offending input, when known.
	Field string

	Msg string
}

func (e FormatError) Error() string {
	if e.Field != "" && e.Msg != "" {
		return "invalid " + e.Field + ": " + e.Msg
	}
	if e.Field != "" {
		return "invalid " + e.Field
	}
	if e.Msg != "" {
		return e.Msg
	}
	return "input does not match the expected format"
}

// ConfigurationError is used when individually valid inputs combine
// into an unsafe or meaningless configuration. It is raised only at
// client construction.
type ConfigurationError struct {
	Msg string
}

func (e ConfigurationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "inconsistent client configuration"
}

// BadSignatureError is used when a cryptographic signature fails
// verification. It is never retried automatically.
type BadSignatureError struct {
	Msg string
}

func (e BadSignatureError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "signature verification failed"
}

// BadTimeAttestationError is used when a time attestation carries a
// valid signature but does not answer the nonce this client sent.
// It is distinct from BadSignatureError: the remediation is to send a
// fresh nonce, not to distrust the timeserver key.
type BadTimeAttestationError struct {
	Msg string
}

func (e BadTimeAttestationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "time attestation does not match the outstanding nonce"
}

// MetadataError wraps a failure reported by the metadata update engine:
// an expired role, a version rollback, a broken signature chain, or an
// unreadable bundle.
type MetadataError struct {
	// Repo names the repository whose metadata failed, when known.
	Repo string

	Err error
}

func (e MetadataError) Error() string {
	switch {
	case e.Repo != "" && e.Err != nil:
		return "metadata update failed for repository " + e.Repo + ": " + e.Err.Error()
	case e.Err != nil:
		return "metadata update failed: " + e.Err.Error()
	case e.Repo != "":
		return "metadata update failed for repository " + e.Repo
	}
	return "metadata update failed"
}

// Unwrap returns the underlying engine error.
func (e MetadataError) Unwrap() error {
	return e.Err
}

// ImageValidationError is used when candidate firmware bytes do not
// match the hashes or length of the assigned target. Validation always
// fails closed.
type ImageValidationError struct {
	// Filepath is the logical path of the target being validated.
	Filepath string

	Msg string
}

func (e ImageValidationError) Error() string {
	if e.Filepath != "" && e.Msg != "" {
		return "image validation failed for " + e.Filepath + ": " + e.Msg
	}
	if e.Msg != "" {
		return "image validation failed: " + e.Msg
	}
	return "image validation failed"
}
