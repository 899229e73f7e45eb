package entities

// Known theme identifiers. The presentation layer owns the visual values;
// this closed set only gates what may be persisted.
var KnownThemes = []string{"classic", "light", "noir", "vapor", "moss"}

const (
	DefaultThemeID   = "classic"
	DefaultShelfName = "My Shelf"
)

// Preferences are the user-editable shelf settings, persisted through the
// same backend-selection rule as books.
type Preferences struct {
	ThemeID   string `json:"themeId"`
	ShelfName string `json:"shelfName"`
}

// DefaultPreferences returns the preferences used before any have been saved.
func DefaultPreferences() Preferences {
	return Preferences{ThemeID: DefaultThemeID, ShelfName: DefaultShelfName}
}

// ValidTheme reports whether id belongs to the closed theme set.
func ValidTheme(id string) bool {
	for _, t := range KnownThemes {
		if t == id {
			return true
		}
	}
	return false
}
