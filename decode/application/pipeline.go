package application

import (
	"context"
	"fmt"
	"net/url"

	"decoder-gateway/decode/domain"
)

// CredentialChecker é o contrato consumido pelo pipeline: normalmente o cache
// de validação na frente do Validator, mas qualquer implementação serve.
type CredentialChecker interface {
	GetOrValidate(ctx context.Context, credential string) (domain.ValidationResult, error)
}

// Pipeline orquestra credencial -> decode -> playable URL.
//
// O rate limit acontece antes, no middleware HTTP; quando o pipeline roda a
// requisição já foi admitida.
type Pipeline struct {
	Checker CredentialChecker
	// TokenParam é o query param anexado à URL decodificada para formar a
	// playable URL. Vazio desliga a anexação.
	TokenParam string
}

// DecodeResult é o desfecho de sucesso de um decode.
type DecodeResult struct {
	DecodedURL  string
	PlayableURL string
	SubjectID   string
}

// Authorize confirma a credencial via cache/validator.
// Erros: domain.ErrInvalidCredential ou domain.ErrUpstreamUnavailable.
func (p Pipeline) Authorize(ctx context.Context, credential string) (domain.ValidationResult, error) {
	if p.Checker == nil {
		return domain.ValidationResult{}, fmt.Errorf("pipeline: no credential checker configured")
	}
	res, err := p.Checker.GetOrValidate(ctx, credential)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if !res.Valid {
		return res, domain.ErrInvalidCredential
	}
	return res, nil
}

// HandleDecode executa o fluxo completo para um payload codificado.
func (p Pipeline) HandleDecode(ctx context.Context, encoded, credential string) (DecodeResult, error) {
	res, err := p.Authorize(ctx, credential)
	if err != nil {
		return DecodeResult{}, err
	}

	decoded, err := domain.DecodePayload(encoded)
	if err != nil {
		return DecodeResult{}, err
	}

	playable, err := domain.BuildPlayableURL(decoded, p.TokenParam, credential)
	if err != nil {
		return DecodeResult{}, err
	}

	return DecodeResult{
		DecodedURL:  decoded,
		PlayableURL: playable,
		SubjectID:   res.SubjectID,
	}, nil
}

// HandleDirect atende a variante "já decodificada": valida a credencial e
// monta a playable URL a partir de uma URL em claro.
func (p Pipeline) HandleDirect(ctx context.Context, rawURL, credential string) (DecodeResult, error) {
	res, err := p.Authorize(ctx, credential)
	if err != nil {
		return DecodeResult{}, err
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return DecodeResult{}, fmt.Errorf("%w: url is not absolute", domain.ErrMalformedPayload)
	}

	playable, err := domain.BuildPlayableURL(rawURL, p.TokenParam, credential)
	if err != nil {
		return DecodeResult{}, err
	}

	return DecodeResult{
		DecodedURL:  rawURL,
		PlayableURL: playable,
		SubjectID:   res.SubjectID,
	}, nil
}
