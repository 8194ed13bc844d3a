// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: janelas fixas por tier em memória
//   - RedisWindowStore: mesma semântica via script Lua no Redis
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate
//   - Cache: TTL + single-flight na frente de um Validator
//   - Client: chamada HTTP ao serviço de identidade
package infra
