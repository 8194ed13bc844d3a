package decode

import (
	"encoding/json"
	"net/http"
	"time"

	"decoder-gateway/decode/application"
	"decoder-gateway/decode/domain"
)

// limite do corpo das requisições JSON
const maxRequestBytes = 1 << 20 // 1 MiB

// Handlers agrupa os endpoints HTTP do serviço.
type Handlers struct {
	Pipeline application.Pipeline
	Stats    domain.StatsStore
}

type decodeRequest struct {
	EncodedURL string `json:"encodedUrl"`
	Credential string `json:"credential"`
	VideoID    string `json:"videoId"`
}

type decodeResponse struct {
	OK           bool   `json:"ok"`
	PlayableURL  string `json:"playableUrl,omitempty"`
	DecodedURL   string `json:"decodedUrl,omitempty"`
	VideoID      string `json:"videoId,omitempty"`
	ErrorKind    string `json:"errorKind,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	RetryAfter   int    `json:"retryAfter,omitempty"`
}

type batchRequest struct {
	Credential string `json:"credential"`
	URLs       []struct {
		EncodedURL string `json:"encodedUrl"`
		VideoID    string `json:"videoId"`
	} `json:"urls"`
}

type batchResponse struct {
	OK         bool             `json:"ok"`
	Results    []decodeResponse `json:"results"`
	Total      int              `json:"total"`
	Successful int              `json:"successful"`
}

type validateRequest struct {
	Credential string `json:"credential"`
}

type validateResponse struct {
	OK        bool      `json:"ok"`
	Valid     bool      `json:"valid"`
	SubjectID string    `json:"subjectId,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Decode atende POST /api/decode: o fluxo completo
// credencial -> decode -> playable URL.
func (h Handlers) Decode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if req.EncodedURL == "" || req.Credential == "" {
		h.fail(w, r, domain.ErrMalformedPayload, "encodedUrl and credential are required")
		return
	}

	res, err := h.Pipeline.HandleDecode(r.Context(), req.EncodedURL, req.Credential)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	h.record(r, domain.OutcomeOK)
	writeJSON(w, http.StatusOK, decodeResponse{
		OK:          true,
		PlayableURL: res.PlayableURL,
		DecodedURL:  res.DecodedURL,
		VideoID:     req.VideoID,
	})
}

// BatchDecode atende POST /api/batch-decode: valida a credencial uma vez e
// decodifica cada item; falha de item não derruba o lote.
func (h Handlers) BatchDecode(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if req.Credential == "" || len(req.URLs) == 0 {
		h.fail(w, r, domain.ErrMalformedPayload, "credential and urls are required")
		return
	}

	if _, err := h.Pipeline.Authorize(r.Context(), req.Credential); err != nil {
		h.fail(w, r, err, "")
		return
	}

	results := make([]decodeResponse, 0, len(req.URLs))
	successful := 0
	for _, item := range req.URLs {
		if item.EncodedURL == "" {
			results = append(results, decodeResponse{
				VideoID:      item.VideoID,
				ErrorKind:    string(domain.OutcomeMalformedInput),
				ErrorMessage: "missing encodedUrl",
			})
			continue
		}

		decoded, err := domain.DecodePayload(item.EncodedURL)
		if err != nil {
			results = append(results, decodeResponse{
				VideoID:      item.VideoID,
				ErrorKind:    string(domain.OutcomeMalformedInput),
				ErrorMessage: err.Error(),
			})
			continue
		}

		playable, err := domain.BuildPlayableURL(decoded, h.Pipeline.TokenParam, req.Credential)
		if err != nil {
			results = append(results, decodeResponse{
				VideoID:      item.VideoID,
				ErrorKind:    string(domain.OutcomeMalformedInput),
				ErrorMessage: err.Error(),
			})
			continue
		}

		successful++
		results = append(results, decodeResponse{
			OK:          true,
			PlayableURL: playable,
			DecodedURL:  decoded,
			VideoID:     item.VideoID,
		})
	}

	h.record(r, domain.OutcomeOK)
	writeJSON(w, http.StatusOK, batchResponse{
		OK:         true,
		Results:    results,
		Total:      len(req.URLs),
		Successful: successful,
	})
}

// ValidateToken atende POST /api/validate-token: só a etapa de credencial,
// passando pelo cache como qualquer outra requisição.
func (h Handlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if req.Credential == "" {
		h.fail(w, r, domain.ErrMalformedPayload, "credential is required")
		return
	}

	res, err := h.Pipeline.Authorize(r.Context(), req.Credential)
	if err != nil {
		if domain.IsInvalidCredential(err) {
			h.record(r, domain.OutcomeInvalidCredential)
			writeJSON(w, http.StatusUnauthorized, validateResponse{
				Valid:     false,
				CheckedAt: res.CheckedAt,
			})
			return
		}
		h.fail(w, r, err, "")
		return
	}

	h.record(r, domain.OutcomeOK)
	writeJSON(w, http.StatusOK, validateResponse{
		OK:        true,
		Valid:     true,
		SubjectID: res.SubjectID,
		CheckedAt: res.CheckedAt,
	})
}

// SimpleDecode atende GET /api?url=...&credential=...: variante em que a URL
// já vem decodificada e só precisa da credencial + playable URL.
func (h Handlers) SimpleDecode(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	credential := r.URL.Query().Get("credential")
	if rawURL == "" || credential == "" {
		h.fail(w, r, domain.ErrMalformedPayload, "url and credential parameters are required")
		return
	}

	res, err := h.Pipeline.HandleDirect(r.Context(), rawURL, credential)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	h.record(r, domain.OutcomeOK)
	writeJSON(w, http.StatusOK, decodeResponse{
		OK:          true,
		PlayableURL: res.PlayableURL,
		DecodedURL:  res.DecodedURL,
	})
}

// Health atende GET /healthz.
func (h Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Docs atende GET /api/docs com uma descrição estática da API.
func (h Handlers) Docs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, apiDocs)
}

func (h Handlers) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.fail(w, r, domain.ErrMalformedPayload, "invalid JSON payload")
		return false
	}
	return true
}

// fail traduz o erro do pipeline para status + errorKind e registra o desfecho.
func (h Handlers) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status, outcome := classify(err)
	if msg == "" {
		msg = err.Error()
	}
	h.record(r, outcome)
	writeError(w, status, string(outcome), msg, 0)
}

func classify(err error) (int, domain.Outcome) {
	switch {
	case domain.IsMalformedPayload(err):
		return http.StatusBadRequest, domain.OutcomeMalformedInput
	case domain.IsInvalidCredential(err):
		return http.StatusUnauthorized, domain.OutcomeInvalidCredential
	case domain.IsUpstreamUnavailable(err):
		return http.StatusServiceUnavailable, domain.OutcomeUpstreamUnavailable
	default:
		return http.StatusInternalServerError, domain.Outcome("internal_error")
	}
}

func (h Handlers) record(r *http.Request, outcome domain.Outcome) {
	recordStats(r.Context(), h.Stats, domain.StatsEvent{
		Key:      CallerKey(r),
		Outcome:  outcome,
		Endpoint: r.Method + " " + r.URL.Path,
		At:       time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, msg string, retryAfter int) {
	writeJSON(w, status, decodeResponse{
		ErrorKind:    kind,
		ErrorMessage: msg,
		RetryAfter:   retryAfter,
	})
}
