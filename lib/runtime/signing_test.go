package runtime

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func double(r *Runtime, args []Expr) Expr {
	var v int64
	if len(args) != 1 || r.IntegerData(args[0], &v) != Success {
		return r.Error(UnexpectedType)
	}
	return r.Integer(2 * v)
}

func TestCodeSigning(t *testing.T) {
	r := newTestRuntime(t)
	r.DefineFunction("Double", double)

	if got := r.EvalString("Double[4]"); r.ErrorType(got) != UnsafeExpression {
		t.Errorf("unsigned call = %s, want UNSAFE_EXPRESSION", text(t, r, got))
	}

	sig, err := GenerateSignature()
	if err != nil {
		t.Fatal(err)
	}
	if k := r.RegisterSymbols(sig, []string{"Double"}); k != Success {
		t.Fatalf("RegisterSymbols = %v", k)
	}
	if got := r.EvalString("Double[4]"); r.ErrorType(got) != SigningError {
		t.Errorf("untrusted signature = %s, want SIGNING_ERROR", text(t, r, got))
	}

	r.RegisterSignature(sig)
	if got := evalText(t, r, "Double[4]"); got != "8" {
		t.Errorf("signed call = %s, want 8", got)
	}

	if k := r.RegisterSymbols(sig, []string{"ok", "not valid"}); k != Malformed {
		t.Errorf("RegisterSymbols with a bad name = %v, want MALFORMED", k)
	}
}

func TestSigningModes(t *testing.T) {
	r := newTestRuntime(t)
	r.DefineFunction("Double", double)
	call := r.E(r.Symbol("Double"), r.Integer(5))

	r.ConfigureCodeSigning(EnableCodeSigningExceptExpressionAPI)
	if got := text(t, r, r.Eval(call)); got != "10" {
		t.Errorf("expression API call = %s, want 10", got)
	}
	if got := r.EvalString("Double[5]"); r.ErrorType(got) != UnsafeExpression {
		t.Errorf("textual call = %s, want UNSAFE_EXPRESSION", text(t, r, got))
	}

	r.ConfigureCodeSigning(DisableCodeSigning)
	if got := evalText(t, r, "Double[5]"); got != "10" {
		t.Errorf("disabled signing = %s, want 10", got)
	}

	r.ConfigureCodeSigning(SigningMode(42))
	if r.CodeSigning() != DisableCodeSigning {
		t.Errorf("unknown mode changed CodeSigning to %v", r.CodeSigning())
	}
}

func TestLicenseKeyDisablesSignedCodeMode(t *testing.T) {
	r := New()
	conf := DefaultConfiguration()
	conf.LicenseKey = "licensed"
	if k := r.Start(Version1, LicenseOrSignedCodeMode, "", conf); k != Success {
		t.Fatalf("Start = %v", k)
	}
	defer r.Close()

	if r.SignedCodeMode() {
		t.Error("SignedCodeMode with a license key = true")
	}
	r.DefineFunction("Double", double)
	if got := evalText(t, r, "Double[3]"); got != "6" {
		t.Errorf("licensed call = %s, want 6", got)
	}
}

func TestRegisterSignatureFile(t *testing.T) {
	r := newTestRuntime(t)
	dir := t.TempDir()

	sig, err := GenerateSignature()
	if err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good.sig")
	if err := os.WriteFile(good, sig[:], 0o600); err != nil {
		t.Fatal(err)
	}
	short := filepath.Join(dir, "short.sig")
	if err := os.WriteFile(short, sig[:10], 0o600); err != nil {
		t.Fatal(err)
	}

	if k := r.RegisterSignatureFile(good); k != Success {
		t.Errorf("RegisterSignatureFile(good) = %v", k)
	}
	if k := r.RegisterSignatureFile(short); k != Malformed {
		t.Errorf("RegisterSignatureFile(short) = %v, want MALFORMED", k)
	}
	if k := r.RegisterSignatureFile(filepath.Join(dir, "missing.sig")); k != MiscellaneousError {
		t.Errorf("RegisterSignatureFile(missing) = %v, want MISCELLANEOUS_ERROR", k)
	}

	r.DefineFunction("Double", double)
	r.RegisterSymbols(sig, []string{"Double"})
	if got := evalText(t, r, "Double[1]"); got != "2" {
		t.Errorf("call through file signature = %s, want 2", got)
	}
}

func TestSigningSurvivesClose(t *testing.T) {
	r := newTestRuntime(t)
	sig, err := GenerateSignature()
	if err != nil {
		t.Fatal(err)
	}
	r.RegisterSignature(sig)
	r.RegisterSymbols(sig, []string{"Double"})
	r.DefineFunction("Double", double)

	r.Close()
	if k := r.Start(Version1, SignedCodeModeLicense, "", nil); k != Success {
		t.Fatalf("restart = %v", k)
	}
	if got := evalText(t, r, "Double[21]"); got != "42" {
		t.Errorf("Double[21] after restart = %s, want 42", got)
	}
}

func TestHandlerOrderAndRemoval(t *testing.T) {
	r := newTestRuntime(t)

	var calls []string
	record := func(text string, data any) {
		calls = append(calls, data.(string)+":"+strings.TrimSpace(text))
	}
	first, k := r.AddStdoutHandler(record, "first")
	if k != Success {
		t.Fatalf("AddStdoutHandler = %v", k)
	}
	r.AddStdoutHandler(record, "second")

	evalText(t, r, `Print["x"]`)
	if strings.Join(calls, ",") != "first:x,second:x" {
		t.Errorf("calls = %v, want [first:x second:x]", calls)
	}

	calls = nil
	r.RemoveStdoutHandler(first)
	r.RemoveStdoutHandler(first)
	evalText(t, r, `Print["y"]`)
	if strings.Join(calls, ",") != "second:y" {
		t.Errorf("calls after removal = %v, want [second:y]", calls)
	}

	if _, k := r.AddStdoutHandler(nil, nil); k != MiscellaneousError {
		t.Errorf("AddStdoutHandler(nil) = %v, want MISCELLANEOUS_ERROR", k)
	}
	if _, k := New().AddMessageHandler(r.DefaultMessageHandler, nil); k != RuntimeNotStarted {
		t.Errorf("AddMessageHandler before Start = %v, want RUNTIME_NOT_STARTED", k)
	}
}

func TestMessageHandlerRemoval(t *testing.T) {
	r := newTestRuntime(t)

	count := 0
	id, _ := r.AddMessageHandler(func(_, _, _ Expr, _ any) { count++ }, nil)
	evalText(t, r, "Part[{1}, 3]")
	r.RemoveMessageHandler(id)
	evalText(t, r, "Part[{1}, 3]")
	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}
}

func TestDefaultHandlers(t *testing.T) {
	r := newTestRuntime(t)

	var out strings.Builder
	r.AddStdoutHandler(DefaultStdoutHandler, &out)
	r.AddMessageHandler(r.DefaultMessageHandler, &out)

	evalText(t, r, `Print["hi"]; Part[{1, 2}, 5]`)
	want := "hi\nPart::partw: Part 5 of {1, 2} does not exist.\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestCloseClearsHandlers(t *testing.T) {
	r := newTestRuntime(t)

	called := false
	r.AddStdoutHandler(func(string, any) { called = true }, nil)
	r.Close()
	if k := r.Start(Version1, SignedCodeModeLicense, "", nil); k != Success {
		t.Fatalf("restart = %v", k)
	}
	evalText(t, r, `Print["x"]`)
	if called {
		t.Error("handler survived Close")
	}
}
