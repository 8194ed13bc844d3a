// Package application contém os casos de uso do pipeline de decode.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) retorna uma Decision (allow/deny + retry-after)
// e Pipeline.HandleDecode(ctx, ...) executa credencial -> decode -> playable.
package application
