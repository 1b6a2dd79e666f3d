package core

import "time"

// DefaultCategory is a system category seeded for every new user.
type DefaultCategory struct {
	Name  string
	Icon  string
	Color string
}

var defaultCategories = []DefaultCategory{
	{Name: "Food", Icon: "Utensils", Color: "#FF6B6B"},
	{Name: "Transport", Icon: "Car", Color: "#4ECDC4"},
	{Name: "Bills", Icon: "FileText", Color: "#45B7D1"},
	{Name: "Shopping", Icon: "ShoppingBag", Color: "#FFA07A"},
	{Name: "Entertainment", Icon: "Music", Color: "#DDA15E"},
	{Name: "Health", Icon: "Heart", Color: "#BC6C25"},
	{Name: "Other", Icon: "MoreHorizontal", Color: "#606C38"},
}

// DefaultCategories builds the seeded categories for userID, in seed order.
// Each gets a distinct, increasing created_at so insertion order survives
// storage that sorts by timestamp.
func DefaultCategories(userID string) []Category {
	now := Now()
	out := make([]Category, len(defaultCategories))
	for i, d := range defaultCategories {
		out[i] = Category{
			ID:        NewID(),
			UserID:    userID,
			Name:      d.Name,
			Icon:      d.Icon,
			Color:     d.Color,
			IsCustom:  false,
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
	}
	return out
}
