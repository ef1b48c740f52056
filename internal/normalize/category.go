package normalize

import "strings"

// Categories used when the source does not provide one
const (
	CategoryTop       = "top"
	CategoryBottom    = "bottom"
	CategoryDress     = "dress"
	CategoryOuterwear = "outerwear"
	CategoryShoes     = "shoes"
	CategoryAccessory = "accessory"
	CategoryOther     = "other"
)

// checked in order; outerwear before top so "羽绒服" is not read as a shirt
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryOuterwear, []string{"外套", "夹克", "羽绒", "大衣", "风衣", "棉服", "jacket", "coat", "parka", "blazer"}},
	{CategoryDress, []string{"连衣裙", "裙子", "长裙", "dress"}},
	{CategoryBottom, []string{"裤", "半身裙", "短裙", "包臀裙", "jeans", "pants", "trousers", "shorts", "skirt"}},
	{CategoryShoes, []string{"鞋", "靴", "sneaker", "shoe", "boot", "sandal"}},
	{CategoryAccessory, []string{
		"帽子", "棒球帽", "鸭舌帽", "渔夫帽", "毛线帽", "贝雷帽",
		"围巾", "背包", "手提包", "斜挎包", "双肩包", "单肩包", "钱包", "包包",
		"腰带", "皮带", "袜", "hat", "scarf", "bag", "belt", "sock",
	}},
	{CategoryTop, []string{"衬衫", "t恤", "卫衣", "毛衣", "针织", "上衣", "背心", "polo", "shirt", "tee", "hoodie", "sweater", "top"}},
}

// titleNoise holds listing phrases whose characters would otherwise hit a keyword:
// 包邮 (free shipping) and 连帽 (hooded)
var titleNoise = strings.NewReplacer("包邮", " ", "连帽", " ")

// InferCategory guesses a clothing category from free text such as the item title
func InferCategory(text string) string {
	text = titleNoise.Replace(strings.ToLower(text))
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return c.category
			}
		}
	}
	return CategoryOther
}
