// Package model holds the domain types shared by the catalog, service,
// repository and handler layers.
package model

import (
	"strings"
	"time"
)

// CustomCasePrefix marks user-defined cases. Their results are never persisted.
const CustomCasePrefix = "custom-"

// Rarity tier names as they appear in the catalog and in stored rows.
const (
	RarityConsumer      = "Consumer Grade"
	RarityIndustrial    = "Industrial Grade"
	RarityMilSpec       = "Mil-Spec Grade"
	RarityRestricted    = "Restricted"
	RarityClassified    = "Classified"
	RarityCovert        = "Covert"
	RarityExtraordinary = "Extraordinary"
)

// HighRarities is the "notable" set used by the onlyCoverts filter.
var HighRarities = []string{RarityCovert, RarityExtraordinary}

// Rarity describes an item's tier. Color is display-only.
type Rarity struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color,omitempty"`
}

// Case is the static definition of a case as sent by clients.
type Case struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Image string `json:"image" validate:"required,trustedimage"`
}

// IsCustom reports whether the case is user-defined.
func (c Case) IsCustom() bool {
	return strings.HasPrefix(c.ID, CustomCasePrefix)
}

// Item is the static definition of an item that can be unboxed.
type Item struct {
	ID     string  `json:"id" validate:"required"`
	Name   string  `json:"name" validate:"required"`
	Rarity Rarity  `json:"rarity" validate:"required"`
	Phase  *string `json:"phase,omitempty"`
	Image  string  `json:"image" validate:"required,trustedimage"`
}

// UnboxPayload is one {case, item} result submitted for persistence.
type UnboxPayload struct {
	Case Case `json:"case" validate:"required"`
	Item Item `json:"item" validate:"required"`
}

// UnboxRecord is a payload bound to the visitor that produced it. It is the
// unit handed to the deferred writer.
type UnboxRecord struct {
	Payload   UnboxPayload `json:"payload"`
	UnboxerID string       `json:"unboxer_id"`
}

// UnboxEvent is a persisted row of the unboxes table.
type UnboxEvent struct {
	ID        int64     `json:"id" db:"id"`
	CaseID    string    `json:"caseId" db:"case_id"`
	CaseName  string    `json:"caseName" db:"case_name"`
	CaseImage string    `json:"caseImage" db:"case_image"`
	ItemID    string    `json:"itemId" db:"item_id"`
	ItemName  string    `json:"itemName" db:"item_name"`
	Rarity    string    `json:"rarity" db:"rarity"`
	Phase     *string   `json:"phase" db:"phase"`
	ItemImage string    `json:"itemImage" db:"item_image"`
	UnboxerID string    `json:"unboxerId" db:"unboxer_id"`
	UnboxedAt time.Time `json:"unboxedAt" db:"unboxed_at"`
}

// NewUnboxEvent flattens a payload into the row shape. ID and UnboxedAt are
// assigned by the database.
func NewUnboxEvent(p UnboxPayload, unboxerID string) UnboxEvent {
	return UnboxEvent{
		CaseID:    p.Case.ID,
		CaseName:  p.Case.Name,
		CaseImage: p.Case.Image,
		ItemID:    p.Item.ID,
		ItemName:  p.Item.Name,
		Rarity:    p.Item.Rarity.Name,
		Phase:     p.Item.Phase,
		ItemImage: p.Item.Image,
		UnboxerID: unboxerID,
	}
}

// UnboxFilter narrows the recent-unboxes query. Filters combine with AND.
type UnboxFilter struct {
	OnlyCoverts  bool
	OnlyPersonal bool
	UnboxerID    string
}

// IsZero reports whether no filter is applied.
func (f UnboxFilter) IsZero() bool {
	return !f.OnlyCoverts && !f.OnlyPersonal
}

// UnboxCount is the result of the count query. Exact is false when Total is
// the cheap MAX(id) upper bound used for the unfiltered table.
type UnboxCount struct {
	Total int64 `json:"total"`
	Exact bool  `json:"exact"`
}

// MaxRecentUnboxes caps the recent-unboxes query.
const MaxRecentUnboxes = 100
