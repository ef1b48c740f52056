package models

// ClothingCollection is an ordered set of items, unique by ID.
// The first item added for an ID wins; insertion order is preserved.
type ClothingCollection struct {
	items []ClothingItem
	index map[string]int
}

// NewCollection returns a collection seeded with items, applying first-seen dedup
func NewCollection(items ...ClothingItem) *ClothingCollection {
	c := &ClothingCollection{index: make(map[string]int, len(items))}
	for _, item := range items {
		c.Add(item)
	}
	return c
}

// Add appends item unless an item with the same ID is already present.
// It reports whether the item was added.
func (c *ClothingCollection) Add(item ClothingItem) bool {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if _, exists := c.index[item.ID]; exists {
		return false
	}
	c.index[item.ID] = len(c.items)
	c.items = append(c.items, item)
	return true
}

func (c *ClothingCollection) Get(id string) (ClothingItem, bool) {
	if c == nil {
		return ClothingItem{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return ClothingItem{}, false
	}
	return c.items[i], true
}

func (c *ClothingCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Items returns a copy of the items in insertion order
func (c *ClothingCollection) Items() []ClothingItem {
	if c == nil {
		return nil
	}
	out := make([]ClothingItem, len(c.items))
	copy(out, c.items)
	return out
}

// ImageURLs returns every item's image URL in gallery order
func (c *ClothingCollection) ImageURLs() []string {
	if c == nil {
		return nil
	}
	urls := make([]string, 0, len(c.items))
	for _, item := range c.items {
		urls = append(urls, item.ImageURL)
	}
	return urls
}
