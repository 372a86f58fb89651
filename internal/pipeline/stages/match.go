package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/persistence"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

// MatchProduct resolves every mapping to a canonical product. Mappings that
// were matched on an earlier run keep their product; the rest are matched by
// normalized name or get a freshly created product, plus color/size variants
// when the listing carries them.
type MatchProduct struct {
	uow persistence.UnitOfWork
}

// NewMatchProduct builds the stage over one unit of work.
func NewMatchProduct(uow persistence.UnitOfWork) *MatchProduct {
	return &MatchProduct{uow: uow}
}

func (s *MatchProduct) Name() string { return "match_product" }

func (s *MatchProduct) Process(ctx context.Context, pc *pipeline.Context) error {
	records, ok := pc.Data.([]model.MappedRecord)
	if !ok {
		return fmt.Errorf("unexpected payload %T", pc.Data)
	}

	out := make([]model.MatchedRecord, 0, len(records))
	matched, created, variants := 0, 0, 0

	for _, rec := range records {
		if rec.ExistingProductID > 0 {
			out = append(out, model.MatchedRecord{MappedRecord: rec, ProductID: rec.ExistingProductID})
			matched++
			continue
		}

		name := normalizeName(rec.Source.Name)
		if name == "" {
			pc.AddErrorf("mapping %d: unusable product name %q", rec.MappingID, rec.Source.Name)
			continue
		}

		product, err := s.uow.Products().ByName(ctx, name)
		if err != nil {
			pc.AddErrorf("mapping %d: product lookup failed: %v", rec.MappingID, err)
			continue
		}

		isNew := product == nil
		if isNew {
			product = &persistence.Product{
				Name: name,
				Slug: strings.ReplaceAll(name, " ", "-"),
			}
			if rec.Source.Brand != "" {
				b := rec.Source.Brand
				product.Brand = &b
			}
			if rec.Source.Description != "" {
				d := rec.Source.Description
				product.Description = &d
			}
			if err := s.uow.Products().Create(ctx, product); err != nil {
				pc.AddErrorf("mapping %d: product creation failed: %v", rec.MappingID, err)
				continue
			}
			created++
		} else {
			matched++
		}

		if batch := buildVariants(product, rec.Source); len(batch) > 0 {
			if err := s.uow.Variants().CreateBatch(ctx, batch); err != nil {
				pc.AddErrorf("mapping %d: variant creation failed: %v", rec.MappingID, err)
			} else {
				variants += len(batch)
			}
		}

		if err := s.uow.Mappings().SetProduct(ctx, rec.MappingID, product.ID); err != nil {
			pc.AddErrorf("mapping %d: product link failed: %v", rec.MappingID, err)
		}

		out = append(out, model.MatchedRecord{MappedRecord: rec, ProductID: product.ID, ProductCreated: isNew})
	}

	pc.Data = out
	pc.Meta["products_matched_existing"] = matched
	pc.Meta["products_created"] = created
	pc.Meta["variants_created"] = variants
	return nil
}

// normalizeName lowercases and collapses runs of whitespace so the same
// listing matches across providers.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// buildVariants expands the listing's colors and sizes into one variant per
// combination, falling back to color-only when no sizes are listed.
func buildVariants(product *persistence.Product, rec model.UnifiedRecord) []persistence.ProductVariant {
	if len(rec.Colors) == 0 {
		return nil
	}

	var out []persistence.ProductVariant
	for _, color := range rec.Colors {
		if color == "" {
			continue
		}
		if len(rec.Sizes) == 0 {
			out = append(out, persistence.ProductVariant{
				ProductID:  product.ID,
				SKU:        fmt.Sprintf("%s-%s", product.Slug, skuToken(color, 3)),
				Attributes: map[string]string{"color": color},
			})
			continue
		}
		for _, size := range rec.Sizes {
			if size == "" {
				continue
			}
			out = append(out, persistence.ProductVariant{
				ProductID:  product.ID,
				SKU:        fmt.Sprintf("%s-%s-%s", product.Slug, skuToken(color, 3), strings.ToLower(size)),
				Attributes: map[string]string{"color": color, "size": size},
			})
		}
	}
	return out
}

// skuToken lowercases a variant attribute and keeps at most max runes, so
// multi-byte color names stay intact.
func skuToken(s string, max int) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes)
}
