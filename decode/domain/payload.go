package domain

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// DecodePayload decodifica o payload base64 (alfabeto padrão, com padding) e
// valida que o resultado é uma URL absoluta (scheme + host no mínimo).
//
// Função pura, sem estado; segura para chamadas concorrentes ilimitadas.
func DecodePayload(encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrMalformedPayload, err)
	}

	decoded := string(raw)
	u, err := url.Parse(decoded)
	if err != nil {
		return "", fmt.Errorf("%w: decoded bytes are not a URL: %v", ErrMalformedPayload, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: decoded URL is not absolute", ErrMalformedPayload)
	}

	return decoded, nil
}

// BuildPlayableURL anexa a credencial como query param na URL decodificada.
// Com param vazio a URL volta sem alteração.
func BuildPlayableURL(decoded, param, credential string) (string, error) {
	u, err := url.Parse(decoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: URL is not absolute", ErrMalformedPayload)
	}
	if param == "" {
		return u.String(), nil
	}

	q := u.Query()
	q.Set(param, credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
