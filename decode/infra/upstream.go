package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"decoder-gateway/decode/domain"
)

// limite de leitura do corpo da resposta do upstream
const maxValidateResponseBytes = 1 << 20 // 1 MiB

// HTTPDoer é o subconjunto de *http.Client que o cliente usa. Facilita
// injetar um transporte fake nos testes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client valida credenciais contra o endpoint de identidade.
//
// Uma chamada síncrona por Validate, limitada pelo timeout do http.Client e
// pelo contexto. Sem retry e sem cache; isso fica em camadas acima.
//
// Classificação das falhas:
//   - erro de conexão/timeout ou 5xx -> domain.ErrUpstreamUnavailable
//   - 2xx com valid=false, qualquer outro status, ou corpo ilegível ->
//     resultado inválido (um fato sobre a credencial, cacheável)
type Client struct {
	endpoint string
	httpc    HTTPDoer
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid     bool   `json:"valid"`
	SubjectID string `json:"subject_id"`
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// NewClientWithDoer injeta o transporte. Usado nos testes.
func NewClientWithDoer(endpoint string, doer HTTPDoer) *Client {
	return &Client{endpoint: endpoint, httpc: doer}
}

// Validate implementa domain.Validator.
func (c *Client) Validate(ctx context.Context, credential string) (domain.ValidationResult, error) {
	body, err := json.Marshal(validateRequest{Token: credential})
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("marshal validate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	checked := time.Now()

	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.ValidationResult{}, fmt.Errorf("%w: upstream returned %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// 4xx: o upstream rejeitou a credencial
		return domain.ValidationResult{CheckedAt: checked}, nil
	}

	var vr validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxValidateResponseBytes)).Decode(&vr); err != nil {
		// corpo ilegível vale como rejeição, não como indisponibilidade
		return domain.ValidationResult{CheckedAt: checked}, nil
	}

	return domain.ValidationResult{
		Valid:     vr.Valid,
		SubjectID: vr.SubjectID,
		CheckedAt: checked,
	}, nil
}
