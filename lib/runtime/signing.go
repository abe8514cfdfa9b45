package runtime

import (
	"crypto/rand"
	"fmt"
	"os"
)

// SignatureSize is the size in bytes of a code signature.
const SignatureSize = 256

// Signature is an opaque token that authorizes a set of symbols.
type Signature [SignatureSize]byte

// SigningMode selects how signatures are enforced.
type SigningMode int

const (
	EnableCodeSigning SigningMode = iota
	EnableCodeSigningExceptExpressionAPI
	DisableCodeSigning
)

func (m SigningMode) String() string {
	switch m {
	case EnableCodeSigning:
		return "enabled"
	case EnableCodeSigningExceptExpressionAPI:
		return "enabled-except-expression-api"
	case DisableCodeSigning:
		return "disabled"
	}
	return fmt.Sprintf("SigningMode(%d)", int(m))
}

// signingRegistry survives Close: signatures are registered at or before
// start-up and never change.
type signingRegistry struct {
	mode    SigningMode
	trusted map[Signature]bool
	covered map[string]Signature
}

func newSigningRegistry() signingRegistry {
	return signingRegistry{
		trusted: make(map[Signature]bool),
		covered: make(map[string]Signature),
	}
}

// GenerateSignature returns a random signature.
func GenerateSignature() (Signature, error) {
	var sig Signature
	if _, err := rand.Read(sig[:]); err != nil {
		return sig, fmt.Errorf("generating signature: %w", err)
	}
	return sig, nil
}

// RegisterSignature marks sig as trusted.
func (r *Runtime) RegisterSignature(sig Signature) ErrorKind {
	r.signing.trusted[sig] = true
	return Success
}

// RegisterSignatureFile reads a signature from a file that must hold
// exactly SignatureSize bytes.
func (r *Runtime) RegisterSignatureFile(path string) ErrorKind {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("reading signature file: %s", err)
		return MiscellaneousError
	}
	if len(data) != SignatureSize {
		log.Errorf("signature file %s has %d bytes, want %d", path, len(data), SignatureSize)
		return Malformed
	}
	var sig Signature
	copy(sig[:], data)
	return r.RegisterSignature(sig)
}

// RegisterSymbols binds symbol names to sig. sig does not need to be
// trusted yet; calls through an untrusted signature fail with SigningError.
func (r *Runtime) RegisterSymbols(sig Signature, names []string) ErrorKind {
	full := make([]string, len(names))
	for i, name := range names {
		full[i] = resolveName(name)
		if !validFullName(full[i]) {
			return Malformed
		}
	}
	for _, name := range full {
		r.signing.covered[name] = sig
	}
	return Success
}

// ConfigureCodeSigning sets the enforcement mode.
func (r *Runtime) ConfigureCodeSigning(mode SigningMode) {
	if mode < EnableCodeSigning || mode > DisableCodeSigning {
		log.Warningf("ignoring unknown signing mode %d", int(mode))
		return
	}
	r.signing.mode = mode
}

// CodeSigning returns the enforcement mode.
func (r *Runtime) CodeSigning() SigningMode {
	return r.signing.mode
}

// checkSigned decides whether an external function may run. textual is
// true while evaluating input that came through EvalString or Get.
func (r *Runtime) checkSigned(fullName string, textual bool) ErrorKind {
	if !r.signedCode {
		return Success
	}
	switch r.signing.mode {
	case DisableCodeSigning:
		return Success
	case EnableCodeSigningExceptExpressionAPI:
		if !textual {
			return Success
		}
	}
	sig, ok := r.signing.covered[fullName]
	if !ok {
		return UnsafeExpression
	}
	if !r.signing.trusted[sig] {
		return SigningError
	}
	return Success
}
