// Package normalize maps raw purchase records onto the canonical clothing schema.
package normalize

import (
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/wardrobe-labs/outfitter/internal/models"
)

// itemNamespace seeds the name-based item IDs; changing it changes every ID
var itemNamespace = uuid.MustParse("8f0c4d5e-2b7a-4c1e-9d3f-6a5b4c3d2e1f")

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

var (
	stripTags   = bluemonday.StrictPolicy()
	priceNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Diagnostics tallies what happened to each input record
type Diagnostics struct {
	Total        int `json:"total" yaml:"total"`
	Kept         int `json:"kept" yaml:"kept"`
	Duplicates   int `json:"duplicates" yaml:"duplicates"`
	MissingImage int `json:"missing_image" yaml:"missing_image"`
	InvalidImage int `json:"invalid_image" yaml:"invalid_image"`
}

// Dropped is the number of records excluded for lacking a usable image
func (d Diagnostics) Dropped() int {
	return d.MissingImage + d.InvalidImage
}

// Normalize converts raw records into a deduplicated collection. It never fails:
// records without a usable image URL are skipped and counted. Records sharing a key
// collapse to the first one seen.
func Normalize(records []models.RawPurchaseRecord) (*models.ClothingCollection, Diagnostics) {
	collection := models.NewCollection()
	diag := Diagnostics{Total: len(records)}

	for _, r := range records {
		imageURL, ok := CanonicalImageURL(r.ImageURL)
		if !ok {
			if strings.TrimSpace(r.ImageURL) == "" {
				diag.MissingImage++
			} else {
				diag.InvalidImage++
			}
			continue
		}

		item := toItem(r, imageURL)
		if !collection.Add(item) {
			diag.Duplicates++
			continue
		}
		diag.Kept++
	}

	slog.Debug("Normalized records",
		"total", diag.Total,
		"kept", diag.Kept,
		"duplicates", diag.Duplicates,
		"missing_image", diag.MissingImage,
		"invalid_image", diag.InvalidImage)

	return collection, diag
}

func toItem(r models.RawPurchaseRecord, imageURL string) models.ClothingItem {
	title := cleanText(r.Title)
	date := canonicalDate(r.PurchaseDate)
	sourceID := strings.TrimSpace(r.ItemID)

	category := cleanText(r.Category)
	if category == "" {
		category = InferCategory(title + " " + r.Extra["sku"])
	}

	return models.ClothingItem{
		ID:            ItemID(sourceID, imageURL, date),
		ImageURL:      imageURL,
		Category:      category,
		Title:         title,
		Price:         parsePrice(r.Price),
		PurchaseDate:  date,
		SourceID:      sourceID,
		RawAttributes: rawAttributes(r),
	}
}

// ItemID derives the canonical ID. The source item identifier wins; without one the
// image URL and purchase date identify the item.
func ItemID(sourceID, imageURL, date string) string {
	key := "src:" + sourceID
	if sourceID == "" {
		key = "img:" + imageURL + "|" + date
	}
	return uuid.NewSHA1(itemNamespace, []byte(key)).String()
}

// CanonicalImageURL validates raw as an absolute http(s) image URL.
// Protocol-relative URLs are upgraded to https.
func CanonicalImageURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" || strings.ContainsAny(raw, " \t\n") {
		return "", false
	}
	if !imageExtensions[strings.ToLower(path.Ext(u.Path))] {
		return "", false
	}
	return u.String(), true
}

func cleanText(s string) string {
	s = html.UnescapeString(stripTags.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func canonicalDate(s string) string {
	t, ok := models.ParsePurchaseDate(s)
	if !ok {
		return ""
	}
	return t.Format(time.DateOnly)
}

func parsePrice(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	m := priceNumber.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

func rawAttributes(r models.RawPurchaseRecord) map[string]string {
	attrs := make(map[string]string, len(r.Extra)+3)
	for k, v := range r.Extra {
		attrs[k] = v
	}
	if r.OrderID != "" {
		attrs["order_id"] = r.OrderID
	}
	if r.Price != "" {
		attrs["price_text"] = r.Price
	}
	if r.Page > 0 {
		attrs["page"] = fmt.Sprint(r.Page)
	}
	return attrs
}
