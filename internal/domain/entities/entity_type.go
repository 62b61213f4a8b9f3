package entities

// EntityType describes one of the type tags offered to the extraction model.
type EntityType struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
