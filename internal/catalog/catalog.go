// Package catalog holds the canonical maintenance-event vocabulary shared by
// all feeds and reconciles it into the store at startup.
package catalog

import (
	"context"

	"streetmaint/internal/models"
	"streetmaint/internal/repository"
)

// EventTypes is the fixed canonical catalog. Identifiers are stable short
// codes; importers map their source-specific labels onto these.
var EventTypes = []models.EventType{
	{Identifier: "kv", NameEN: "Bicycle and pedestrian lanes"},
	{Identifier: "au", NameFI: "Auraus", NameEN: "Snow removal"},
	{Identifier: "su", NameFI: "Suolaus", NameEN: "De-icing with salt"},
	{Identifier: "hi", NameFI: "Hiekoitus", NameEN: "Spreading sand"},
	{Identifier: "nt", NameFI: "Niitto", NameEN: "Mowing"},
	{Identifier: "ln", NameFI: "Lanaus"},
	{Identifier: "hs", NameFI: "Höyläys", NameEN: "Planing"},
	{Identifier: "pe", NameFI: "Kadunpesu", NameEN: "Street washing"},
	{Identifier: "ps", NameFI: "Pölynsidonta"},
	{Identifier: "hn", NameFI: "Hiekannosto", NameEN: "Sand removal"},
	{Identifier: "hj", NameFI: "Harjaus", NameEN: "Brushing"},
	{Identifier: "pn", NameFI: "Pinnoitus", NameEN: "Coating"},
}

// Reconcile creates or updates the stored entry for every catalog event,
// matching on identifier. Entries added to the store by other means are left
// untouched, and calling this any number of times yields the same end state.
func Reconcile(ctx context.Context, repo repository.Repository) error {
	items := make([]models.EventType, len(EventTypes))
	copy(items, EventTypes)
	return repo.UpsertEventTypes(ctx, items)
}

// IdentifierIndex resolves the stored event types into an identifier -> row ID
// map. Importers use it to translate their label mappings at construction.
func IdentifierIndex(ctx context.Context, repo repository.Repository) (map[string]uint64, error) {
	stored, err := repo.ListEventTypes(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]uint64, len(stored))
	for _, et := range stored {
		index[et.Identifier] = et.ID
	}
	return index, nil
}
