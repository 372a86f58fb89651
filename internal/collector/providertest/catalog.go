// Package providertest generates the four bespoke provider feeds from a
// shared master catalog. The fake provider server serves these payloads over
// HTTP and integration tests feed them straight into the adapters, so the
// wire shapes here and the adapter expectations stay in sync by construction.
package providertest

// Product is one master catalog entry. BasePrice is quoted in GBP; each
// provider converts it into its own currency and applies its price level.
type Product struct {
	SKU         string
	Name        string
	Brand       string
	Category    string
	Subcategory string
	BasePrice   float64
}

// Profile describes how one provider exposes the catalog: which SKUs it
// carries, its wire currency, its price and stock levels relative to the
// master catalog, and how often it fails.
type Profile struct {
	Slug          string
	Currency      string
	ErrorRate     float64
	PriceModifier float64
	StockModifier float64
	SKUs          []string
}

// catalog is the master product list shared by all providers.
var catalog = []Product{
	{SKU: "CAMP-001", Name: "NorthFace Stormbreak 2 Çadır", Brand: "NorthFace", Category: "Kamp", Subcategory: "Çadır", BasePrice: 250},
	{SKU: "CAMP-002", Name: "MSR Hubba Hubba NX 2 Çadır", Brand: "MSR", Category: "Kamp", Subcategory: "Çadır", BasePrice: 450},
	{SKU: "CAMP-003", Name: "Deuter Astro 500 Uyku Tulumu", Brand: "Deuter", Category: "Kamp", Subcategory: "Uyku Tulumu", BasePrice: 180},
	{SKU: "CAMP-004", Name: "Mammut Perform Down -15°C", Brand: "Mammut", Category: "Kamp", Subcategory: "Uyku Tulumu", BasePrice: 320},
	{SKU: "CAMP-005", Name: "Therm-a-Rest NeoAir XLite Mat", Brand: "Therm-a-Rest", Category: "Kamp", Subcategory: "Mat", BasePrice: 200},
	{SKU: "CAMP-006", Name: "Jetboil Flash Ocak Sistemi", Brand: "Jetboil", Category: "Kamp", Subcategory: "Pişirme", BasePrice: 120},
	{SKU: "CAMP-007", Name: "Black Diamond Spot 400 Kafa Lambası", Brand: "Black Diamond", Category: "Kamp", Subcategory: "Aydınlatma", BasePrice: 45},
	{SKU: "CAMP-008", Name: "Osprey Atmos AG 65 Sırt Çantası", Brand: "Osprey", Category: "Kamp", Subcategory: "Çanta", BasePrice: 280},

	{SKU: "CLIMB-001", Name: "La Sportiva Nepal Cube GTX", Brand: "La Sportiva", Category: "Dağcılık", Subcategory: "Ayakkabı", BasePrice: 550},
	{SKU: "CLIMB-002", Name: "Salomon X Ultra 4 GTX", Brand: "Salomon", Category: "Dağcılık", Subcategory: "Ayakkabı", BasePrice: 180},
	{SKU: "CLIMB-003", Name: "Petzl Sirocco Kask", Brand: "Petzl", Category: "Dağcılık", Subcategory: "Güvenlik", BasePrice: 120},
	{SKU: "CLIMB-004", Name: "Black Diamond Trail Pro Baton", Brand: "Black Diamond", Category: "Dağcılık", Subcategory: "Baton", BasePrice: 150},
	{SKU: "CLIMB-005", Name: "Mammut 9.5 Crag Classic İp 70m", Brand: "Mammut", Category: "Dağcılık", Subcategory: "İp", BasePrice: 180},
	{SKU: "CLIMB-006", Name: "Arc'teryx Alpha SV Ceket", Brand: "Arc'teryx", Category: "Dağcılık", Subcategory: "Giyim", BasePrice: 800},
	{SKU: "CLIMB-007", Name: "Petzl Lynx Krampon", Brand: "Petzl", Category: "Dağcılık", Subcategory: "Buz/Kar", BasePrice: 220},

	{SKU: "RUN-001", Name: "Nike Pegasus 40", Brand: "Nike", Category: "Koşu", Subcategory: "Ayakkabı", BasePrice: 130},
	{SKU: "RUN-002", Name: "Hoka Clifton 9", Brand: "Hoka", Category: "Koşu", Subcategory: "Ayakkabı", BasePrice: 145},
	{SKU: "RUN-003", Name: "Asics Gel-Kayano 30", Brand: "Asics", Category: "Koşu", Subcategory: "Ayakkabı", BasePrice: 180},
	{SKU: "RUN-004", Name: "Garmin Forerunner 265", Brand: "Garmin", Category: "Koşu", Subcategory: "Elektronik", BasePrice: 450},
	{SKU: "RUN-005", Name: "Salomon ADV Skin 12 Vest", Brand: "Salomon", Category: "Koşu", Subcategory: "Çanta", BasePrice: 150},
	{SKU: "RUN-006", Name: "Brooks Ghost 15", Brand: "Brooks", Category: "Koşu", Subcategory: "Ayakkabı", BasePrice: 140},

	{SKU: "BIKE-001", Name: "Specialized Tarmac SL7 Kadro", Brand: "Specialized", Category: "Bisiklet", Subcategory: "Kadro", BasePrice: 3500},
	{SKU: "BIKE-002", Name: "Shimano Ultegra R8100 Groupset", Brand: "Shimano", Category: "Bisiklet", Subcategory: "Parça", BasePrice: 1800},
	{SKU: "BIKE-003", Name: "Giro Aether MIPS Kask", Brand: "Giro", Category: "Bisiklet", Subcategory: "Güvenlik", BasePrice: 300},
	{SKU: "BIKE-004", Name: "Wahoo ELEMNT BOLT V2", Brand: "Wahoo", Category: "Bisiklet", Subcategory: "Elektronik", BasePrice: 280},
	{SKU: "BIKE-005", Name: "SRAM Red AXS Vites Grubu", Brand: "SRAM", Category: "Bisiklet", Subcategory: "Parça", BasePrice: 2800},

	{SKU: "SKI-001", Name: "Atomic Redster G9 Kayak", Brand: "Atomic", Category: "Kış Sporları", Subcategory: "Kayak", BasePrice: 700},
	{SKU: "SKI-002", Name: "Rossignol Hero Elite ST Ti", Brand: "Rossignol", Category: "Kış Sporları", Subcategory: "Kayak", BasePrice: 650},
	{SKU: "SKI-003", Name: "Burton Custom X Snowboard", Brand: "Burton", Category: "Kış Sporları", Subcategory: "Snowboard", BasePrice: 700},
	{SKU: "SKI-004", Name: "Salomon S/Pro 130 Kayak Botu", Brand: "Salomon", Category: "Kış Sporları", Subcategory: "Ayakkabı", BasePrice: 450},
	{SKU: "SKI-005", Name: "Arc'teryx Rush Ceket", Brand: "Arc'teryx", Category: "Kış Sporları", Subcategory: "Giyim", BasePrice: 750},

	{SKU: "WATER-001", Name: "O'Neill Psycho Tech 4/3mm Wetsuit", Brand: "O'Neill", Category: "Su Sporları", Subcategory: "Giyim", BasePrice: 350},
	{SKU: "WATER-002", Name: "Red Paddle Sport 11'3 SUP", Brand: "Red Paddle", Category: "Su Sporları", Subcategory: "Board", BasePrice: 900},
	{SKU: "WATER-003", Name: "NRS Chinook PFD Can Yeleği", Brand: "NRS", Category: "Su Sporları", Subcategory: "Güvenlik", BasePrice: 120},
	{SKU: "WATER-004", Name: "Cressi F1 Dalış Maskesi", Brand: "Cressi", Category: "Su Sporları", Subcategory: "Dalış", BasePrice: 80},

	{SKU: "FIT-001", Name: "Rogue Ohio Bar", Brand: "Rogue", Category: "Fitness", Subcategory: "Ekipman", BasePrice: 300},
	{SKU: "FIT-002", Name: "TRX Pro4 Suspension Trainer", Brand: "TRX", Category: "Fitness", Subcategory: "Ekipman", BasePrice: 200},
	{SKU: "FIT-003", Name: "Hyperice Hypervolt 2 Pro", Brand: "Hyperice", Category: "Fitness", Subcategory: "Recovery", BasePrice: 350},
	{SKU: "FIT-004", Name: "Nike Metcon 9", Brand: "Nike", Category: "Fitness", Subcategory: "Ayakkabı", BasePrice: 150},
}

// colors are the paint options attached to feeds that carry one.
var colors = []string{"Siyah", "Beyaz", "Mavi", "Kırmızı", "Yeşil", "Turuncu", "Gri", "Lacivert"}

// wireRates converts the GBP base prices into each provider's wire currency.
var wireRates = map[string]float64{"GBP": 1.0, "USD": 1.27, "EUR": 1.17, "TRY": 40.50}

// profiles lists the providers in collection order. Error rates mirror the
// observed reliability of the real feeds: the UK one almost never fails, the
// German one falls over roughly every third call.
var profiles = []Profile{
	{
		Slug: "sport-direct", Currency: "GBP", ErrorRate: 0.01,
		PriceModifier: 1.0, StockModifier: 1.2,
		SKUs: []string{
			"RUN-001", "RUN-002", "RUN-003", "RUN-004", "RUN-005", "RUN-006",
			"BIKE-001", "BIKE-002", "BIKE-003", "BIKE-004", "BIKE-005",
			"FIT-001", "FIT-002", "FIT-003", "FIT-004",
			"CAMP-001", "CAMP-003", "CAMP-007",
		},
	},
	{
		Slug: "outdoor-pro", Currency: "USD", ErrorRate: 0.05,
		PriceModifier: 1.05, StockModifier: 1.0,
		SKUs: []string{
			"CAMP-001", "CAMP-002", "CAMP-003", "CAMP-004", "CAMP-005", "CAMP-006", "CAMP-007", "CAMP-008",
			"CLIMB-001", "CLIMB-002", "CLIMB-003", "CLIMB-004", "CLIMB-005", "CLIMB-006", "CLIMB-007",
			"WATER-001", "WATER-002", "WATER-003", "WATER-004",
			"RUN-004", "RUN-005",
		},
	},
	{
		Slug: "dag-spor", Currency: "TRY", ErrorRate: 0.15,
		PriceModifier: 0.85, StockModifier: 0.7,
		SKUs: []string{
			"CLIMB-001", "CLIMB-002", "CLIMB-003", "CLIMB-004", "CLIMB-005", "CLIMB-006", "CLIMB-007",
			"CAMP-001", "CAMP-002", "CAMP-003", "CAMP-004", "CAMP-005", "CAMP-006", "CAMP-007", "CAMP-008",
			"SKI-001", "SKI-002", "SKI-003", "SKI-004", "SKI-005",
		},
	},
	{
		Slug: "alpine-gear", Currency: "EUR", ErrorRate: 0.30,
		PriceModifier: 1.15, StockModifier: 0.5,
		SKUs: []string{
			"SKI-001", "SKI-002", "SKI-003", "SKI-004", "SKI-005",
			"CLIMB-001", "CLIMB-003", "CLIMB-006", "CLIMB-007",
			"CAMP-002", "CAMP-004",
		},
	},
}

// Catalog returns a copy of the master product list.
func Catalog() []Product {
	return append([]Product(nil), catalog...)
}

// Profiles returns the provider profiles in collection order.
func Profiles() []Profile {
	return append([]Profile(nil), profiles...)
}

// ProfileFor returns the profile for a provider slug.
func ProfileFor(slug string) (Profile, bool) {
	for _, p := range profiles {
		if p.Slug == slug {
			return p, true
		}
	}
	return Profile{}, false
}

func masterProduct(sku string) (Product, bool) {
	for _, p := range catalog {
		if p.SKU == sku {
			return p, true
		}
	}
	return Product{}, false
}
