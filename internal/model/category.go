package model

// Category is a backend-defined sales or expense category.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        Kind   `json:"-"`
}

// FindCategory returns the category with the given ID, or nil.
func FindCategory(categories []Category, id int) *Category {
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i]
		}
	}
	return nil
}
