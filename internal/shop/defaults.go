package shop

// Currency is appended to prices in customer-facing text.
const Currency = "د.م"

// DefaultBanner is the announcement shown until an admin changes it.
const DefaultBanner = "أهلاً بكم في بازار لوك - خصومات تصل إلى 50% على التشكيلة الجديدة! 🌟"

// SuggestedCategories are offered by the admin product form. Products are not
// restricted to them.
var SuggestedCategories = []string{"رجال", "نساء", "أطفال", "أحذية", "اكسسوارات"}

func price(v float64) *float64 { return &v }

// DefaultProducts returns a fresh copy of the seed catalog.
func DefaultProducts() []Product {
	return []Product{
		{
			ID:          1,
			Name:        "تيشيرت قطن كلاسيك أبيض",
			Price:       120,
			Category:    "رجال",
			Image:       "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?auto=format&fit=crop&w=800&q=80",
			Description: "تيشيرت قطني ناعم وعالي الجودة مناسب للاستخدام اليومي، قصة مريحة وعصرية.",
			Sizes:       []string{"S", "M", "L", "XL"},
		},
		{
			ID:            2,
			Name:          "فستان صيفي مزهر",
			Price:         299,
			DiscountPrice: price(249),
			Category:      "نساء",
			Image:         "https://images.unsplash.com/photo-1572804013309-59a88b7e92f1?auto=format&fit=crop&w=800&q=80",
			Description:   "فستان أنيق بتصميم عصري وألوان زاهية، مثالي للأجواء الصيفية والمناسبات.",
			Sizes:         []string{"S", "M", "L"},
		},
		{
			ID:          3,
			Name:        "حذاء رياضي مريح",
			Price:       450,
			Category:    "أحذية",
			Image:       "https://images.unsplash.com/photo-1542291026-7eec264c27ff?auto=format&fit=crop&w=800&q=80",
			Description: "حذاء رياضي بتصميم انسيابي يوفر راحة قصوى للقدمين أثناء المشي والجري.",
			Sizes:       []string{"40", "41", "42", "43", "44"},
		},
		{
			ID:          4,
			Name:        "جاكيت جينز عصري",
			Price:       320,
			Category:    "رجال",
			Image:       "https://images.unsplash.com/photo-1576871337622-98d48d1cf531?auto=format&fit=crop&w=800&q=80",
			Description: "جاكيت جينز كلاسيكي يناسب جميع الإطلالات، خامة متينة وعملية.",
			Sizes:       []string{"M", "L", "XL", "XXL"},
		},
		{
			ID:            5,
			Name:          "حقيبة جلدية فاخرة",
			Price:         550,
			DiscountPrice: price(480),
			Category:      "اكسسوارات",
			Image:         "https://images.unsplash.com/photo-1548036328-c9fa89d128fa?auto=format&fit=crop&w=800&q=80",
			Description:   "حقيبة يد جلدية بتصميم راقي، مساحة واسعة وتفاصيل دقيقة.",
		},
		{
			ID:          6,
			Name:        "طقم ملابس أطفال",
			Price:       180,
			Category:    "أطفال",
			Image:       "https://images.unsplash.com/photo-1522771930-78848d9293e8?auto=format&fit=crop&w=800&q=80",
			Description: "طقم مريح وأنيق للأطفال، خامات ناعمة وآمنة على البشرة.",
			Sizes:       []string{"2-3Y", "4-5Y", "6-7Y"},
		},
	}
}

// DefaultSiteConfig has order tracking switched on.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{EnableTrackOrder: true}
}
