package arabic

// Tables holds the heuristic word lists the processor matches against.
// They are data, not logic: deployments can override any of them from
// configuration without touching the matching code.
type Tables struct {
	StopWords   []string
	Categories  []CategoryDef
	Locations   []string
	BuyingCues  []string
	SellingCues []string
}

// CategoryDef maps a canonical category name to its representative
// keywords. Order matters: detection returns the first category with a
// keyword hit.
type CategoryDef struct {
	Name     string
	Keywords []string
}

// DefaultTables returns the built-in Egyptian-market word lists.
func DefaultTables() Tables {
	return Tables{
		StopWords: []string{
			"في", "من", "إلى", "على", "عن", "مع", "هذا", "هذه", "ذلك", "تلك",
			"التي", "الذي", "اللذان", "اللتان", "اللاتي", "اللواتي",
			"هو", "هي", "هم", "هن", "أنا", "أنت", "أنتم", "أنتن", "نحن",
			"لا", "لم", "لن", "ما", "لكن", "غير", "سوى", "إلا",
			"كل", "بعض", "جميع", "كان", "كانت", "يكون", "تكون", "أكون",
			"أن", "إن", "كي", "لكي", "حتى", "لو", "لولا", "لوما", "إذا",
			"عند", "عندما", "بينما", "أثناء", "خلال", "أمام", "وراء", "فوق",
			"تحت", "يمين", "يسار", "شمال", "وسط", "بين", "ضد", "نحو",
		},
		Categories: []CategoryDef{
			{Name: "موبايل", Keywords: []string{"موبايل", "جوال", "هاتف", "تليفون", "سامسونج", "آيفون", "هواوي", "شاومي"}},
			{Name: "سيارات", Keywords: []string{"سيارة", "عربية", "أوتوموبيل", "تويوتا", "نيسان", "هيونداي", "كيا"}},
			{Name: "عقارات", Keywords: []string{"شقة", "فيلا", "بيت", "منزل", "أرض", "محل", "مكتب", "عقار"}},
			{Name: "أثاث", Keywords: []string{"أثاث", "كنبة", "سرير", "طاولة", "كرسي", "دولاب"}},
			{Name: "إلكترونيات", Keywords: []string{"تلفزيون", "لابتوب", "كمبيوتر", "تابلت", "سماعات", "كاميرا"}},
			{Name: "ملابس", Keywords: []string{"ملابس", "فستان", "قميص", "بنطلون", "جاكيت", "حذاء", "شنطة"}},
			{Name: "خدمات", Keywords: []string{"خدمة", "تنظيف", "صيانة", "تدريس", "ترجمة", "تصميم", "برمجة"}},
		},
		Locations: []string{
			"القاهرة", "الجيزة", "الإسكندرية", "أسوان", "أسيوط", "البحر الأحمر",
			"البحيرة", "بني سويف", "جنوب سيناء", "الدقهلية", "دمياط", "الفيوم",
			"الغربية", "الإسماعيلية", "كفر الشيخ", "الأقصر", "مطروح", "المنيا",
			"المنوفية", "الوادي الجديد", "شمال سيناء", "بورسعيد", "القليوبية",
			"قنا", "الشرقية", "سوهاج", "السويس", "طنطا",
			"المنصورة", "الزقازيق", "شبرا الخيمة",
			"مدينة نصر", "مصر الجديدة", "الزمالك", "المعادي", "حلوان",
		},
		BuyingCues:  []string{"أريد", "عايز", "محتاج", "بدور على", "أبحث عن"},
		SellingCues: []string{"أبيع", "للبيع", "متاح", "عرض"},
	}
}
