// Package domain define contratos e tipos de domínio do pipeline de decode.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura (redis, cliente HTTP do upstream, etc).
package domain
