package models

// RawPurchaseRecord is one scraped purchase line, kept verbatim.
// Every field is source text; any of them may be empty or malformed.
type RawPurchaseRecord struct {
	OrderID      string            `json:"order_id"`
	ItemID       string            `json:"item_id"`
	Title        string            `json:"title"`
	ImageURL     string            `json:"image_url"`
	Category     string            `json:"category"`
	Price        string            `json:"price"`
	PurchaseDate string            `json:"purchase_date"`
	Page         int               `json:"page"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// ClothingItem is the canonical, deduplicated form of a purchase
type ClothingItem struct {
	ID            string            `json:"id"`
	ImageURL      string            `json:"image_url"`
	Category      string            `json:"category"`
	Title         string            `json:"title"`
	Price         float64           `json:"price"`
	PurchaseDate  string            `json:"purchase_date"` // YYYY-MM-DD, empty when unknown
	SourceID      string            `json:"source_id,omitempty"`
	RawAttributes map[string]string `json:"raw_attributes,omitempty"`
}

// RecommendationRequest carries a style request.
// Temperature is the wearer's current ambient temperature in degrees Celsius.
type RecommendationRequest struct {
	StylePreference string   `json:"style_preference"`
	Temperature     *float64 `json:"temperature,omitempty"`
	Mood            *string  `json:"mood,omitempty"`
	Model           string   `json:"model"`
}

// RecommendationResult holds the model reply and the image references extracted from it
type RecommendationResult struct {
	ImageURLs []string `json:"image_urls"`
	RawText   string   `json:"raw_text"`
}
