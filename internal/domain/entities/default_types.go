package entities

// DefaultEntityTypes are the type tags the extraction prompt offers. Entity.Type
// stays an open string; anything else the model returns is kept as is.
var DefaultEntityTypes = []EntityType{
	{Name: "npc", Description: "Non-player characters, creatures, named beings"},
	{Name: "pc", Description: "Player characters"},
	{Name: "location", Description: "Places, regions, buildings, geographical features"},
	{Name: "faction", Description: "Organizations, guilds, cults, governments"},
	{Name: "item", Description: "Artifacts, weapons, notable objects"},
	{Name: "quest", Description: "Missions, goals, plot threads"},
	{Name: "event", Description: "Battles, ceremonies, historical occurrences"},
	{Name: "session", Description: "A play session summary"},
	{Name: "lore", Description: "Myths, rules, customs, world mechanics"},
}

// DefaultTypeNames returns just the names of default types for quick lookup.
func DefaultTypeNames() []string {
	names := make([]string, len(DefaultEntityTypes))
	for i, t := range DefaultEntityTypes {
		names[i] = t.Name
	}
	return names
}

// IsDefaultType checks if a type name is a built-in default.
func IsDefaultType(name string) bool {
	for _, t := range DefaultEntityTypes {
		if t.Name == name {
			return true
		}
	}
	return false
}
