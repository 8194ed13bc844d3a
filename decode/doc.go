// Package decode fornece os adapters HTTP (net/http) do pipeline de decode.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão de rate limit, pipeline de decode)
//   - infra: implementações concretas (janelas fixas, redis, token bucket,
//     cache de validação, cliente do upstream)
//   - decode (este pacote): handlers + middlewares + extração de chave +
//     tradução para status/headers/JSON
//
// Fluxo de uma requisição de decode:
//
//  1. Extrai a chave do chamador (IP/header/XFF)
//  2. Middleware de tiers decide admitir ou rejeitar (429 + Retry-After)
//  3. Handler valida a credencial via cache (401 se rejeitada, 503 se o
//     upstream estiver fora)
//  4. Decodifica o payload (400 se malformado) e responde a playable URL
//
// Variáveis de ambiente do binário (cmd/server) controlam o comportamento,
// como RATE_PER_MINUTE, CACHE_TTL e UPSTREAM_URL.
package decode
