package schedule

import "testing"

func TestSlugify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected string
	}{
		{"1-CS", "1-cs"},
		{"1А-ИБ", "1a-ib"},
		{"2-ТЛ", "2-tl"},
		{"1-IM-IBE гр.1(MA)", "1-im-ibe-gr1ma"},
		{"Щёлк Йод", "shyolk-jod"},
		{"Қазақ тілі", "kazak-tili"},
		{"Übung  für   Mädchen", "ubung-fur-madchen"},
		{"  --a--  ", "a"},
		{"Объём", "obuyom"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
