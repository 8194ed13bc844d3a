package domain

import "errors"

var (
	// ErrMalformedPayload indica entrada inválida do chamador (base64 ou URL).
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidCredential indica que o upstream rejeitou a credencial.
	ErrInvalidCredential = errors.New("invalid or expired credential")

	// ErrUpstreamUnavailable indica falha transitória ao falar com o upstream
	// (conexão, timeout, 5xx). Nunca entra no cache; seguro tentar de novo.
	ErrUpstreamUnavailable = errors.New("upstream identity service unavailable")
)

func IsMalformedPayload(err error) bool {
	return errors.Is(err, ErrMalformedPayload)
}

func IsInvalidCredential(err error) bool {
	return errors.Is(err, ErrInvalidCredential)
}

func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
