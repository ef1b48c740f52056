package storage

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/wardrobe-labs/outfitter/internal/models"
)

var rawHeader = []string{"order_id", "item_id", "title", "image_url", "category", "price", "purchase_date", "page", "extra"}

// rawRow is the flat, fixed-column form of a RawPurchaseRecord
type rawRow struct {
	OrderID      string `parquet:"order_id"`
	ItemID       string `parquet:"item_id"`
	Title        string `parquet:"title"`
	ImageURL     string `parquet:"image_url"`
	Category     string `parquet:"category"`
	Price        string `parquet:"price"`
	PurchaseDate string `parquet:"purchase_date"`
	Page         int64  `parquet:"page"`
	Extra        string `parquet:"extra"` // JSON object
}

func toRawRow(r models.RawPurchaseRecord) rawRow {
	return rawRow{
		OrderID:      r.OrderID,
		ItemID:       r.ItemID,
		Title:        r.Title,
		ImageURL:     r.ImageURL,
		Category:     r.Category,
		Price:        r.Price,
		PurchaseDate: r.PurchaseDate,
		Page:         int64(r.Page),
		Extra:        encodeMap(r.Extra),
	}
}

func (r rawRow) record() models.RawPurchaseRecord {
	return models.RawPurchaseRecord{
		OrderID:      r.OrderID,
		ItemID:       r.ItemID,
		Title:        r.Title,
		ImageURL:     r.ImageURL,
		Category:     r.Category,
		Price:        r.Price,
		PurchaseDate: r.PurchaseDate,
		Page:         int(r.Page),
		Extra:        decodeMap(r.Extra),
	}
}

func (r rawRow) csv() []string {
	return []string{r.OrderID, r.ItemID, r.Title, r.ImageURL, r.Category, r.Price, r.PurchaseDate, strconv.FormatInt(r.Page, 10), r.Extra}
}

func rawRowFromCSV(get func(string) string) (rawRow, error) {
	row := rawRow{
		OrderID:      get("order_id"),
		ItemID:       get("item_id"),
		Title:        get("title"),
		ImageURL:     get("image_url"),
		Category:     get("category"),
		Price:        get("price"),
		PurchaseDate: get("purchase_date"),
		Extra:        get("extra"),
	}
	if p := get("page"); p != "" {
		page, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return row, fmt.Errorf("invalid page %q: %w", p, err)
		}
		row.Page = page
	}
	return row, nil
}

var itemHeader = []string{"id", "image_url", "category", "title", "price", "purchase_date", "source_id", "raw_attributes"}

// itemRow is the flat, fixed-column form of a ClothingItem
type itemRow struct {
	ID            string  `parquet:"id"`
	ImageURL      string  `parquet:"image_url"`
	Category      string  `parquet:"category"`
	Title         string  `parquet:"title"`
	Price         float64 `parquet:"price"`
	PurchaseDate  string  `parquet:"purchase_date"`
	SourceID      string  `parquet:"source_id"`
	RawAttributes string  `parquet:"raw_attributes"` // JSON object
}

func toItemRow(item models.ClothingItem) itemRow {
	return itemRow{
		ID:            item.ID,
		ImageURL:      item.ImageURL,
		Category:      item.Category,
		Title:         item.Title,
		Price:         item.Price,
		PurchaseDate:  item.PurchaseDate,
		SourceID:      item.SourceID,
		RawAttributes: encodeMap(item.RawAttributes),
	}
}

func (r itemRow) item() models.ClothingItem {
	return models.ClothingItem{
		ID:            r.ID,
		ImageURL:      r.ImageURL,
		Category:      r.Category,
		Title:         r.Title,
		Price:         r.Price,
		PurchaseDate:  r.PurchaseDate,
		SourceID:      r.SourceID,
		RawAttributes: decodeMap(r.RawAttributes),
	}
}

func (r itemRow) csv() []string {
	return []string{r.ID, r.ImageURL, r.Category, r.Title, strconv.FormatFloat(r.Price, 'f', -1, 64), r.PurchaseDate, r.SourceID, r.RawAttributes}
}

func itemRowFromCSV(get func(string) string) (itemRow, error) {
	row := itemRow{
		ID:            get("id"),
		ImageURL:      get("image_url"),
		Category:      get("category"),
		Title:         get("title"),
		PurchaseDate:  get("purchase_date"),
		SourceID:      get("source_id"),
		RawAttributes: get("raw_attributes"),
	}
	if p := get("price"); p != "" {
		price, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return row, fmt.Errorf("invalid price %q: %w", p, err)
		}
		row.Price = price
	}
	return row, nil
}

func encodeMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	// map keys are marshalled in sorted order, so output is stable
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeMap(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]string{"_unparsed": s}
	}
	return m
}
