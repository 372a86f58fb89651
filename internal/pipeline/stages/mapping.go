package stages

import (
	"context"
	"fmt"

	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/persistence"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

// ResolveMapping attaches the provider mapping row to every record, creating
// it when the (provider, external code) pair has never been seen. Records
// without a provider id or external code cannot be tracked and are dropped.
type ResolveMapping struct {
	uow persistence.UnitOfWork
}

// NewResolveMapping builds the stage over one unit of work.
func NewResolveMapping(uow persistence.UnitOfWork) *ResolveMapping {
	return &ResolveMapping{uow: uow}
}

func (s *ResolveMapping) Name() string { return "resolve_mapping" }

func (s *ResolveMapping) Process(ctx context.Context, pc *pipeline.Context) error {
	records, ok := pc.Data.([]model.NormalizedRecord)
	if !ok {
		return fmt.Errorf("unexpected payload %T", pc.Data)
	}

	out := make([]model.MappedRecord, 0, len(records))
	failed := 0
	for _, rec := range records {
		if rec.Source.ProviderID <= 0 {
			pc.AddErrorf("ID %s: provider id missing, mapping not resolved", rec.Source.ExternalCode)
			failed++
			continue
		}
		if rec.Source.ExternalCode == "" {
			pc.AddError("record carries no external product code")
			failed++
			continue
		}

		var productURL *string
		if rec.Source.ProductURL != "" {
			u := rec.Source.ProductURL
			productURL = &u
		}

		mapping, err := s.uow.Mappings().FindOrCreate(ctx, rec.Source.ProviderID, rec.Source.ExternalCode, productURL)
		if err != nil {
			pc.AddErrorf("ID %s: mapping lookup failed: %v", rec.Source.ExternalCode, err)
			failed++
			continue
		}

		mapped := model.MappedRecord{NormalizedRecord: rec, MappingID: mapping.ID}
		if mapping.ProductID != nil {
			mapped.ExistingProductID = *mapping.ProductID
		}
		out = append(out, mapped)
	}

	pc.Data = out
	pc.Meta["mappings_processed"] = len(out)
	pc.Meta["mapping_errors"] = failed
	return nil
}
