package providertest

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type sportDirectItem struct {
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	Brand         string  `json:"brand"`
	Category      string  `json:"category"`
	Subcategory   string  `json:"subcategory"`
	Colour        string  `json:"colour"`
	PriceGBP      float64 `json:"price_gbp"`
	StockQuantity int     `json:"stock_quantity"`
	InStock       bool    `json:"in_stock"`
}

type outdoorProItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Brand     string  `json:"brand"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Stock     int     `json:"stock"`
	Available bool    `json:"available"`
}

type dagSporItem struct {
	UrunID      string `json:"urun_id"`
	UrunAdi     string `json:"urun_adi"`
	Marka       string `json:"marka"`
	Kategori    string `json:"kategori"`
	AltKategori string `json:"alt_kategori"`
	Renk        string `json:"renk"`
	Fiyat       string `json:"fiyat"`
	StokAdedi   int    `json:"stok_adedi"`
	StoktaVar   bool   `json:"stokta_var"`
}

type alpineGearItem struct {
	ArtikelID      string `json:"artikel_id"`
	Produktname    string `json:"produktname"`
	Marke          string `json:"marke"`
	Kategorie      string `json:"kategorie"`
	Unterkategorie string `json:"unterkategorie"`
	Farbe          string `json:"farbe"`
	Preis          string `json:"preis"`
	Lagerbestand   int    `json:"lagerbestand"`
	Verfuegbar     bool   `json:"verfuegbar"`
}

// entry is one generated catalog line before it is shaped into a provider's
// wire format.
type entry struct {
	ID      string
	Product Product
	Price   float64
	Stock   int
	Color   string
}

// Payload builds the bespoke JSON body a provider serves. Generation is
// seeded by the slug, so repeated calls return identical bytes and tests can
// rely on the exact products in each feed.
func Payload(slug string) ([]byte, error) {
	profile, ok := ProfileFor(slug)
	if !ok {
		return nil, fmt.Errorf("no feed profile for provider %q", slug)
	}

	entries := generate(profile)
	switch slug {
	case "sport-direct":
		items := make([]sportDirectItem, len(entries))
		for i, e := range entries {
			items[i] = sportDirectItem{
				ProductID:     e.ID,
				ProductName:   e.Product.Name,
				Brand:         e.Product.Brand,
				Category:      e.Product.Category,
				Subcategory:   e.Product.Subcategory,
				Colour:        e.Color,
				PriceGBP:      e.Price,
				StockQuantity: e.Stock,
				InStock:       e.Stock > 0,
			}
		}
		return json.Marshal(struct {
			Provider string            `json:"provider"`
			Currency string            `json:"currency"`
			Products []sportDirectItem `json:"products"`
		}{"SportsDirect UK", profile.Currency, items})

	case "outdoor-pro":
		items := make([]outdoorProItem, len(entries))
		for i, e := range entries {
			items[i] = outdoorProItem{
				ID:        e.ID,
				Name:      e.Product.Name,
				Brand:     e.Product.Brand,
				Category:  e.Product.Category,
				Price:     e.Price,
				Currency:  profile.Currency,
				Stock:     e.Stock,
				Available: e.Stock > 0,
			}
		}
		return json.Marshal(struct {
			Status string           `json:"status"`
			Count  int              `json:"count"`
			Items  []outdoorProItem `json:"items"`
		}{"ok", len(items), items})

	case "dag-spor":
		items := make([]dagSporItem, len(entries))
		for i, e := range entries {
			items[i] = dagSporItem{
				UrunID:      e.ID,
				UrunAdi:     e.Product.Name,
				Marka:       e.Product.Brand,
				Kategori:    e.Product.Category,
				AltKategori: e.Product.Subcategory,
				Renk:        e.Color,
				Fiyat:       formatCommaDecimal(e.Price),
				StokAdedi:   e.Stock,
				StoktaVar:   e.Stock > 0,
			}
		}
		return json.Marshal(struct {
			Durum      string        `json:"durum"`
			UrunSayisi int           `json:"urun_sayisi"`
			Urunler    []dagSporItem `json:"urunler"`
		}{"basarili", len(items), items})

	case "alpine-gear":
		items := make([]alpineGearItem, len(entries))
		for i, e := range entries {
			items[i] = alpineGearItem{
				ArtikelID:      e.ID,
				Produktname:    e.Product.Name,
				Marke:          e.Product.Brand,
				Kategorie:      e.Product.Category,
				Unterkategorie: e.Product.Subcategory,
				Farbe:          e.Color,
				Preis:          formatCommaDecimal(e.Price),
				Lagerbestand:   e.Stock,
				Verfuegbar:     e.Stock > 0,
			}
		}
		return json.Marshal(struct {
			Anbieter string           `json:"anbieter"`
			Produkte []alpineGearItem `json:"produkte"`
		}{"AlpineGear DE", items})
	}
	return nil, fmt.Errorf("no feed builder for provider %q", slug)
}

// generate expands a profile's SKU list into priced catalog entries using a
// PRNG seeded from the slug.
func generate(profile Profile) []entry {
	rng := rand.New(rand.NewSource(seed(profile.Slug)))
	rate := wireRates[profile.Currency]
	if rate == 0 {
		rate = 1.0
	}

	entries := make([]entry, 0, len(profile.SKUs))
	for idx, sku := range profile.SKUs {
		product, ok := masterProduct(sku)
		if !ok {
			continue
		}
		entries = append(entries, entry{
			ID:      strconv.Itoa(idx + 1),
			Product: product,
			Price:   genPrice(rng, product.BasePrice*rate, profile.PriceModifier),
			Stock:   genStock(rng, profile.StockModifier),
			Color:   colors[rng.Intn(len(colors))],
		})
	}
	return entries
}

func seed(slug string) int64 {
	h := fnv.New64a()
	h.Write([]byte(slug))
	return int64(h.Sum64())
}

// genPrice applies the provider's price level, a ±3% drift and a retail
// ending (.99, .95 or .00).
func genPrice(rng *rand.Rand, converted, modifier float64) float64 {
	drift := 0.97 + rng.Float64()*0.06
	price := converted * modifier * drift
	endings := []float64{0.99, 0.95, 0.00}
	return float64(int(price)) + endings[rng.Intn(len(endings))]
}

func genStock(rng *rand.Rand, modifier float64) int {
	base := 5 + rng.Intn(96)
	stock := int(float64(base) * modifier)
	if stock < 0 {
		return 0
	}
	return stock
}

// formatCommaDecimal renders a price the way the Turkish and German feeds
// do: dot thousands separators, comma decimals ("4.500,99").
func formatCommaDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.LastIndexByte(s, '.')
	intPart, frac := s[:dot], s[dot+1:]

	var b strings.Builder
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteByte(intPart[i])
	}
	return b.String() + "," + frac
}

// Options tunes the fake provider handler. A nil ErrorRates map keeps each
// profile's default failure rate; a non-nil map replaces it wholesale, so an
// empty map turns injection off.
type Options struct {
	ErrorRates map[string]float64
	MinLatency time.Duration
	MaxLatency time.Duration
}

// Handler serves the four provider feeds under
// /api/v1/providers/{provider}/products with latency jitter and probabilistic
// failures per Options.
func Handler(opts Options) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/providers/{provider}/products", func(w http.ResponseWriter, r *http.Request) {
		slug := mux.Vars(r)["provider"]
		profile, ok := ProfileFor(slug)
		if !ok {
			writeFeedError(w, http.StatusNotFound, fmt.Sprintf("unknown provider %q", slug))
			return
		}

		if opts.MaxLatency > 0 {
			span := opts.MaxLatency - opts.MinLatency
			delay := opts.MinLatency
			if span > 0 {
				delay += time.Duration(rand.Int63n(int64(span)))
			}
			time.Sleep(delay)
		}

		errorRate := profile.ErrorRate
		if opts.ErrorRates != nil {
			errorRate = opts.ErrorRates[slug]
		}
		if errorRate > 0 && rand.Float64() < errorRate {
			log.Warn().Str("provider", slug).Msg("Injecting provider failure")
			writeFeedError(w, http.StatusInternalServerError, "provider temporarily unavailable")
			return
		}

		body, err := Payload(slug)
		if err != nil {
			writeFeedError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}).Methods(http.MethodGet)
	return router
}

func writeFeedError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
