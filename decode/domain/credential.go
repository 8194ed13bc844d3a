package domain

import (
	"context"
	"time"
)

// Key identifica o chamador para fins de rate limit (ex: IP, API key).
type Key string

// ValidationResult é o resultado de uma validação de credencial no upstream.
//
// Imutável depois de criado; uma revalidação produz um novo resultado,
// nunca muta o anterior.
type ValidationResult struct {
	Valid     bool
	SubjectID string
	CheckedAt time.Time
}

// Validator valida uma credencial contra o serviço de identidade.
//
// Uma chamada síncrona por invocação, sem cache e sem retry; cache é
// responsabilidade de quem embrulha o Validator.
type Validator interface {
	Validate(ctx context.Context, credential string) (ValidationResult, error)
}
