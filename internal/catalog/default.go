package catalog

// RouteBack asks the navigation service to go to the previous page.
const RouteBack = "back"

// DefaultDefinitions returns the built-in travel site commands.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name:        "home",
			Patterns:    []string{"ana sayfa", "anasayfa", "başa dön", "home"},
			Category:    "navigation",
			Description: "Ana sayfaya git",
			Response:    "Ana sayfaya gidiyorum",
			Route:       "/",
		},
		{
			Name:        "hotels",
			Patterns:    []string{"oteller", "otelleri göster", "konaklama", "hotels"},
			Category:    "navigation",
			Description: "Otelleri göster",
			Response:    "Oteller açılıyor",
			Route:       "/hotels",
		},
		{
			Name:        "tours",
			Patterns:    []string{"turlar", "turları göster", "tur paketleri", "tours"},
			Category:    "navigation",
			Description: "Turları göster",
			Response:    "Turlar açılıyor",
			Route:       "/tours",
		},
		{
			Name:        "flights",
			Patterns:    []string{"uçuşlar", "uçak bileti", "uçuş ara", "flights"},
			Category:    "navigation",
			Description: "Uçuşları göster",
			Response:    "Uçuşlar açılıyor",
			Route:       "/flights",
		},
		{
			Name:        "destinations",
			Patterns:    []string{"destinasyonlar", "gezilecek yerler", "destinations"},
			Category:    "navigation",
			Description: "Destinasyonları göster",
			Response:    "Destinasyonlar açılıyor",
			Route:       "/destinations",
		},
		{
			Name:        "reservations",
			Patterns:    []string{"rezervasyonlarım", "rezervasyonlar", "my bookings"},
			Category:    "account",
			Description: "Rezervasyonlarımı göster",
			Response:    "Rezervasyonlarınız açılıyor",
			Route:       "/reservations",
		},
		{
			Name:        "login",
			Patterns:    []string{"giriş yap", "oturum aç", "login"},
			Category:    "account",
			Description: "Giriş sayfasını aç",
			Route:       "/login",
		},
		{
			Name:        "register",
			Patterns:    []string{"kayıt ol", "üye ol", "sign up"},
			Category:    "account",
			Description: "Kayıt sayfasını aç",
			Route:       "/register",
		},
		{
			Name:        "contact",
			Patterns:    []string{"iletişim", "bize ulaşın", "contact"},
			Category:    "info",
			Description: "İletişim sayfasını aç",
			Route:       "/contact",
		},
		{
			Name:        "about",
			Patterns:    []string{"hakkımızda", "about us"},
			Category:    "info",
			Description: "Hakkımızda sayfasını aç",
			Route:       "/about",
		},
		{
			Name:        "help",
			Patterns:    []string{"yardım", "komutlar", "help"},
			Category:    "info",
			Description: "Sesli komut listesini göster",
			Response:    "Kullanabileceğiniz komutlar ekranda",
			Route:       "/help",
		},
		{
			Name:        "back",
			Patterns:    []string{"geri git", "geri dön", "go back"},
			Category:    "navigation",
			Description: "Önceki sayfaya dön",
			Route:       RouteBack,
		},
	}
}
