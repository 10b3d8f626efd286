package search

import (
	"strconv"
	"strings"

	"github.com/dmbp/licitaflix/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips any markup that leaks into upstream free-text fields so
// matching and display always see plain text.
var textPolicy = bluemonday.StrictPolicy()

func cleanText(s string) string {
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

// The upstream payloads are loosely typed: identifiers and codes arrive as
// strings or numbers depending on endpoint and record age. These getters do
// total conversions with empty/nil defaults, per-field.

func str(raw map[string]interface{}, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func boolean(raw map[string]interface{}, key string) bool {
	b, _ := raw[key].(bool)
	return b
}

func nested(raw map[string]interface{}, key string) map[string]interface{} {
	m, _ := raw[key].(map[string]interface{})
	return m
}

// normalizeLegacy maps a /modulo-legado/1_consultarLicitacao record (Lei 8.666).
func normalizeLegacy(raw map[string]interface{}) models.Bid {
	return models.Bid{
		IDCompra:       str(raw, "id_compra"),
		Source:         models.SourceLegacyBidding,
		Modality:       str(raw, "nome_modalidade"),
		ModalityCode:   toInt(raw["modalidade"]),
		Description:    cleanText(str(raw, "objeto")),
		EstimatedValue: toFloat(raw["valor_estimado_total"]),
		AwardedValue:   toFloat(raw["valor_homologado_total"]),
		UASG:           str(raw, "uasg"),
		Situation:      str(raw, "situacao_aviso"),
		PublishedAt:    parseAPIDate(str(raw, "data_publicacao")),
		ProposalOpenAt: parseAPIDate(str(raw, "data_abertura_proposta")),
		ItemCount:      toInt(raw["numero_itens"]),
		ProcessNumber:  str(raw, "numero_processo"),
		Raw:            raw,
	}
}

// normalizeAuction maps a /modulo-legado/3_consultarPregoes record.
func normalizeAuction(raw map[string]interface{}) models.Bid {
	return models.Bid{
		IDCompra:        str(raw, "id_compra"),
		Source:          models.SourceLegacyAuction,
		Modality:        "Pregão",
		Description:     cleanText(str(raw, "tx_objeto")),
		EstimatedValue:  toFloat(raw["vl_estimado_total"]),
		AwardedValue:    toFloat(raw["vl_homologado_total"]),
		Agency:          str(raw, "no_orgao"),
		UASG:            str(raw, "co_uasg"),
		Situation:       str(raw, "ds_situacao_pregao"),
		PublishedAt:     parseAPIDate(str(raw, "dt_data_edital")),
		ProposalOpenAt:  parseAPIDate(str(raw, "dt_inicio_proposta")),
		ProposalCloseAt: parseAPIDate(str(raw, "dt_fim_proposta")),
		ResultAt:        parseAPIDate(str(raw, "dt_resultado")),
		ProcessNumber:   str(raw, "co_processo"),
		Raw:             raw,
	}
}

// normalizeUnified maps a /modulo-contratacoes/1_consultarContratacoes_PNCP_14133
// record (Lei 14.133).
func normalizeUnified(raw map[string]interface{}) models.Bid {
	return models.Bid{
		IDCompra:        str(raw, "idCompra"),
		PNCPControl:     str(raw, "numeroControlePNCP"),
		Source:          models.SourceUnified,
		Modality:        str(raw, "modalidadeNome"),
		ModalityCode:    toInt(raw["codigoModalidade"]),
		Description:     cleanText(str(raw, "objetoCompra")),
		EstimatedValue:  toFloat(raw["valorTotalEstimado"]),
		AwardedValue:    toFloat(raw["valorTotalHomologado"]),
		Agency:          str(raw, "orgaoEntidadeRazaoSocial"),
		UASG:            str(raw, "unidadeOrgaoCodigoUnidade"),
		UF:              str(raw, "unidadeOrgaoUfSigla"),
		Municipality:    str(raw, "unidadeOrgaoMunicipioNome"),
		Situation:       str(raw, "situacaoCompraNomePncp"),
		PublishedAt:     parseAPIDate(str(raw, "dataPublicacaoPncp")),
		ProposalOpenAt:  parseAPIDate(str(raw, "dataAberturaPropostaPncp")),
		ProposalCloseAt: parseAPIDate(str(raw, "dataEncerramentoPropostaPncp")),
		ProcessNumber:   str(raw, "processo"),
		Recurring:       boolean(raw, "srp"),
		Raw:             raw,
	}
}

// normalizePNCP maps a /v1/contratacoes/publicacao record. PNCP has no
// id_compra; the PNCP control number is the record's external identity.
func normalizePNCP(raw map[string]interface{}) models.Bid {
	orgao := nested(raw, "orgaoEntidade")
	unidade := nested(raw, "unidadeOrgao")

	return models.Bid{
		IDCompra:        str(raw, "numeroControlePNCP"),
		PNCPControl:     str(raw, "numeroControlePNCP"),
		Source:          models.SourcePNCP,
		Modality:        str(raw, "modalidadeNome"),
		ModalityCode:    toInt(raw["modalidadeId"]),
		Description:     cleanText(str(raw, "objetoCompra")),
		EstimatedValue:  toFloat(raw["valorTotalEstimado"]),
		AwardedValue:    toFloat(raw["valorTotalHomologado"]),
		Agency:          str(orgao, "razaoSocial"),
		UASG:            str(unidade, "codigoUnidade"),
		UF:              str(unidade, "ufSigla"),
		Municipality:    str(unidade, "municipioNome"),
		Situation:       str(raw, "situacaoCompraNome"),
		PublishedAt:     parseAPIDate(str(raw, "dataPublicacaoPncp")),
		ProposalOpenAt:  parseAPIDate(str(raw, "dataAberturaProposta")),
		ProposalCloseAt: parseAPIDate(str(raw, "dataEncerramentoProposta")),
		ProcessNumber:   str(raw, "processo"),
		Recurring:       boolean(raw, "srp"),
		Raw:             raw,
	}
}
