package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"
)

// errorClass maps a transport error to a short label that stays the same
// across runs. Raw errors carry ephemeral ports and addresses, and a
// failure reason has to be identical for repeated failures to add up in
// the window.
func errorClass(err error) string {
	var (
		dnsErr   *net.DNSError
		verify   *tls.CertificateVerificationError
		unknown  x509.UnknownAuthorityError
		hostname x509.HostnameError
		invalid  x509.CertificateInvalidError
		ne       net.Error
		answer   *answerError
	)
	switch {
	case errors.As(err, &answer):
		return answer.msg
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return "timeout"
	case errors.As(err, &dnsErr):
		if dnsErr.IsNotFound {
			return "host not found"
		}
		return "name resolution failed"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "connection reset"
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return "unreachable"
	case errors.As(err, &verify), errors.As(err, &unknown), errors.As(err, &hostname), errors.As(err, &invalid):
		return "certificate verification failed"
	case errors.Is(err, syscall.EPERM), errors.Is(err, syscall.EACCES):
		return "permission denied"
	default:
		return "network error"
	}
}

// failWith classifies err into a stable reason and keeps the raw error
// text in the "error" result of this run.
func (b *Base) failWith(err error, format string, args ...any) CheckResult {
	b.SetResult("error", map[string]any{"detail": err.Error()})
	return Fail(format+": "+errorClass(err), args...)
}

// answerError is a protocol-level problem with an answer that did arrive.
// Its text is already stable and is used as the class.
type answerError struct{ msg string }

func (e *answerError) Error() string { return e.msg }
