package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/session"
)

// fetchScript posts a form from inside the logged-in page so the session cookies ride along
const fetchScript = `(url, body) => fetch(url, {
	method: 'POST',
	credentials: 'include',
	headers: {'Content-Type': 'application/x-www-form-urlencoded; charset=UTF-8'},
	body: body,
}).then(r => r.text())`

// TaobaoSource reads the bought-items list of a Taobao buyer account
type TaobaoSource struct {
	Endpoint string
	PageSize int
}

func NewTaobaoSource(endpoint string, pageSize int) *TaobaoSource {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &TaobaoSource{Endpoint: endpoint, PageSize: pageSize}
}

func (t *TaobaoSource) FetchPage(ctx context.Context, s *session.Session, req PageRequest) (*Page, error) {
	form := url.Values{}
	form.Set("pageNum", strconv.Itoa(req.Number))
	form.Set("pageSize", strconv.Itoa(t.PageSize))
	form.Set("prePageNo", strconv.Itoa(max(req.Number-1, 1)))
	if !req.Since.IsZero() {
		form.Set("dateBegin", strconv.FormatInt(req.Since.UnixMilli(), 10))
	}
	if !req.Until.IsZero() {
		form.Set("dateEnd", strconv.FormatInt(req.Until.UnixMilli(), 10))
	}

	body, err := s.Eval(ctx, fetchScript, t.Endpoint, form.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", req.Number, err)
	}
	return parseBoughtPage(body, req.Number)
}

// flexString accepts JSON strings and numbers
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

type boughtResponse struct {
	MainOrders []struct {
		ID        flexString `json:"id"`
		OrderInfo struct {
			CreateDay  string `json:"createDay"`
			CreateTime string `json:"createTime"`
		} `json:"orderInfo"`
		StatusInfo struct {
			Text string `json:"text"`
		} `json:"statusInfo"`
		Seller struct {
			ShopName string `json:"shopName"`
		} `json:"seller"`
		SubOrders []struct {
			ID       flexString `json:"id"`
			Quantity flexString `json:"quantity"`
			ItemInfo struct {
				ID      flexString `json:"id"`
				Title   string     `json:"title"`
				Pic     string     `json:"pic"`
				SkuText []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"skuText"`
			} `json:"itemInfo"`
			PriceInfo struct {
				RealTotal flexString `json:"realTotal"`
				Original  flexString `json:"original"`
			} `json:"priceInfo"`
		} `json:"subOrders"`
	} `json:"mainOrders"`
	Page struct {
		CurrentPage int `json:"currentPage"`
		TotalPage   int `json:"totalPage"`
	} `json:"page"`
}

func parseBoughtPage(body string, number int) (*Page, error) {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "<") {
		// an HTML body is the login redirect
		return nil, ErrSessionExpired
	}

	var resp boughtResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode page %d: %w", number, err)
	}

	page := &Page{HasMore: resp.Page.CurrentPage < resp.Page.TotalPage}
	for _, order := range resp.MainOrders {
		date := order.OrderInfo.CreateTime
		if date == "" {
			date = order.OrderInfo.CreateDay
		}
		for _, sub := range order.SubOrders {
			extra := map[string]string{}
			var sku []string
			for _, kv := range sub.ItemInfo.SkuText {
				if kv.Name == "" {
					continue
				}
				extra["sku:"+kv.Name] = kv.Value
				sku = append(sku, kv.Name+":"+kv.Value)
			}
			if order.Seller.ShopName != "" {
				extra["shop"] = order.Seller.ShopName
			}
			if order.StatusInfo.Text != "" {
				extra["status"] = order.StatusInfo.Text
			}
			if sub.Quantity != "" {
				extra["quantity"] = string(sub.Quantity)
			}
			if sub.ID != "" {
				extra["sub_order_id"] = string(sub.ID)
			}
			if len(sku) > 0 {
				extra["sku"] = strings.Join(sku, ";")
			}

			price := sub.PriceInfo.RealTotal
			if price == "" {
				price = sub.PriceInfo.Original
			}

			page.Records = append(page.Records, models.RawPurchaseRecord{
				OrderID:      string(order.ID),
				ItemID:       string(sub.ItemInfo.ID),
				Title:        sub.ItemInfo.Title,
				ImageURL:     sub.ItemInfo.Pic,
				Price:        string(price),
				PurchaseDate: date,
				Page:         number,
				Extra:        extra,
			})
		}
	}
	return page, nil
}
