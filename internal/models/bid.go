package models

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies which upstream endpoint a bid was normalized from.
type Source string

const (
	SourceLegacyBidding Source = "comprasgov_legado"
	SourceLegacyAuction Source = "comprasgov_pregao"
	SourceUnified       Source = "comprasgov_14133"
	SourcePNCP          Source = "pncp"
)

// Bid is the canonical procurement notice shape. Every source client maps its
// raw payload into this struct; IDCompra is the natural key used for
// deduplication and upserts across repeated ingestions.
type Bid struct {
	ID              uuid.UUID              `json:"id"`
	IDCompra        string                 `json:"id_compra"`
	PNCPControl     string                 `json:"numero_controle_pncp"`
	Source          Source                 `json:"source"`
	Modality        string                 `json:"modality"`
	ModalityCode    *int                   `json:"modality_code"`
	Description     string                 `json:"description"`
	EstimatedValue  *float64               `json:"estimated_value"`
	AwardedValue    *float64               `json:"awarded_value"`
	Agency          string                 `json:"agency"`
	UASG            string                 `json:"uasg"`
	UF              string                 `json:"uf"`
	Municipality    string                 `json:"municipality"`
	Situation       string                 `json:"situation"`
	PublishedAt     *time.Time             `json:"published_at"`
	ProposalOpenAt  *time.Time             `json:"proposal_open_at"`
	ProposalCloseAt *time.Time             `json:"proposal_close_at"`
	ResultAt        *time.Time             `json:"result_at"`
	ItemCount       *int                   `json:"item_count"`
	ProcessNumber   string                 `json:"process_number"`
	Recurring       bool                   `json:"recurring"` // SRP (registro de preços)
	Raw             map[string]interface{} `json:"raw,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}
