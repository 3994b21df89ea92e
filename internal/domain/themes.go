package domain

// MaxThemes bounds every ThemeSummary.
const MaxThemes = 5

// ThemeKind says which bucket a summary was built from.
type ThemeKind string

const (
	ThemeKindBug     ThemeKind = "bug"
	ThemeKindFeature ThemeKind = "feature"
)

type Theme struct {
	Name        string
	Explanation string
}

// ThemeSummary is an ordered list of at most MaxThemes themes. Fewer themes
// are returned when the bucket does not support more.
type ThemeSummary struct {
	Kind   ThemeKind
	Themes []Theme
}

func (s ThemeSummary) Len() int {
	return len(s.Themes)
}

func (s ThemeSummary) Names() []string {
	names := make([]string, 0, len(s.Themes))
	for _, t := range s.Themes {
		names = append(names, t.Name)
	}
	return names
}

// Report is the rendered markdown handed back to the caller.
type Report struct {
	ExecutiveSummary string
	Markdown         string
}
