package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \t\n", ""},
		{"plain ascii", "Hotels", "hotels"},
		{"trim", "  oteller  ", "oteller"},
		{"dotted capital I", "İSTANBUL", "istanbul"},
		{"dotless capital I", "IĞDIR", "igdir"},
		{"turkish letters", "uçuşlar", "ucuslar"},
		{"mixed case diacritics", "Çanakkale ÖZEL Şehir Ünye", "canakkale ozel sehir unye"},
		{"decomposed cedilla", "c\u0327ay", "cay"},
		{"other marks", "café", "cafe"},
		{"inner spacing kept", "ana  sayfa", "ana  sayfa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"İSTANBUL",
		"istanbul",
		"  Otelleri GÖSTER ",
		"Rezervasyonlarım",
		"ığüşöç İĞÜŞÖÇ",
		"café crème",
		"xyzxyz",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalize_CaseAndDiacriticInsensitive(t *testing.T) {
	pairs := [][2]string{
		{"İSTANBUL", "istanbul"},
		{"UÇUŞLAR", "ucuslar"},
		{"Giriş Yap", "giris yap"},
		{"HAKKIMIZDA", "hakkımızda"},
	}

	for _, p := range pairs {
		if Normalize(p[0]) != Normalize(p[1]) {
			t.Errorf("expected %q and %q to normalize equally, got %q and %q",
				p[0], p[1], Normalize(p[0]), Normalize(p[1]))
		}
	}
}
