package conversation

import (
	"fmt"
	"strings"

	"github.com/zakisalem/souq-bot/internal/arabic"
	"github.com/zakisalem/souq-bot/internal/models"
)

// Canned Arabic replies. Kept as data so the wording can change without
// touching the state handlers.
const (
	msgWelcome = "أهلاً بك 👋، من فضلك اختر:\n1️⃣ أنا معلن\n2️⃣ أنا مشتري"

	msgRolePromptInvalid = "من فضلك اختر رقم 1 للمعلنين أو رقم 2 للمشترين"

	msgAdvertiserRequestAd = "ممتاز! من فضلك اكتب تفاصيل إعلانك في 3 أسطر على الأقل، واحرص على ذكر:\n• نوع المنتج أو الخدمة\n• السعر\n• معلومات الاتصال"

	msgAdTooShort = "من فضلك اكتب تفاصيل أكثر عن إعلانك (على الأقل 3 أسطر)"

	msgAdEnhanced = "ده النص المحسن لإعلانك ✅، هل توافق عليه؟\n\nاكتب 'نعم' للموافقة أو 'تعديل' لطلب تعديلات"

	msgConfirmFallback = "هل توافق على نشر هذا الإعلان؟"

	msgConfirmInvalid = "من فضلك اختر 'نعم' للموافقة أو 'تعديل' لإعادة كتابة الإعلان"

	msgRewritePrompt = "حسناً، من فضلك اكتب النص الجديد لإعلانك:"

	msgRequestImage = "من فضلك أرسل صورة للمنتج، أو اكتب 'تخطي' للمتابعة بدون صورة 📷"

	msgAdSubmitted = "تم إرسال إعلانك للمراجعة 📋\nسيتم إشعارك بالنتيجة خلال 24 ساعة"

	msgAdPublished = "🎉 تم رفع إعلانك بنجاح، وهذا هو الرابط الخاص به:"

	msgBuyerRequestSearch = "أخبرني، ما الذي تبحث عنه بالضبط؟ 🔎\nمثال: أنا عايز موبايل سامسونج بسعر أقل من 5000 جنيه"

	msgQueryTooShort = "من فضلك اكتب تفاصيل أكثر عما تبحث عنه (كلمتين على الأقل)"

	msgSearchResultsHeader = "إليك أفضل النتائج التي وجدتها لك:"

	msgNoResults = "عذرًا، لم أجد نتائج مطابقة لطلبك 😔\nجرب البحث بكلمات مختلفة أو قم بتوسيع نطاق البحث"

	msgResultsPrompt = "هل تريد البحث عن شيء آخر؟ اكتب طلبك الجديد أو اكتب 'بحث جديد'"

	msgAdNotFound = "عذرًا، لم أجد هذا الإعلان 😔"

	msgImageFailed = "عذرًا، لم أتمكن من تحليل الصورة. جرب وصف ما تبحث عنه بالكلمات."

	msgGenericError = "عذرًا، حدث خطأ. من فضلك حاول مرة أخرى."
)

func roleQuickReplies() []models.QuickReply {
	return []models.QuickReply{
		{Title: "1️⃣ أنا معلن", Payload: "advertiser"},
		{Title: "2️⃣ أنا مشتري", Payload: "buyer"},
	}
}

func confirmQuickReplies() []models.QuickReply {
	return []models.QuickReply{
		{Title: "✅ نعم، موافق", Payload: "approve"},
		{Title: "✏️ تعديل", Payload: "edit"},
	}
}

var matchTypeIcons = map[models.MatchType]string{
	models.MatchExact:   "🎯",
	models.MatchPartial: "🔍",
	models.MatchImage:   "📸",
}

// formatMatches renders a numbered Arabic result listing.
func formatMatches(matches []models.Match) string {
	var sb strings.Builder
	sb.WriteString(msgSearchResultsHeader)
	sb.WriteString("\n\n")

	for i, m := range matches {
		description := m.Text
		if runes := []rune(description); len(runes) > 120 {
			description = string(runes[:120]) + "..."
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, description)
		if m.Price != nil {
			fmt.Fprintf(&sb, "💰 السعر: %s\n", arabic.FormatPrice(*m.Price, ""))
		}
		if m.Location != "" {
			fmt.Fprintf(&sb, "📍 الموقع: %s\n", m.Location)
		}
		if m.Link != "" {
			fmt.Fprintf(&sb, "🔗 رابط الإعلان: %s\n", m.Link)
		}
		icon := matchTypeIcons[m.MatchType]
		if icon == "" {
			icon = "🔍"
		}
		fmt.Fprintf(&sb, "%s نسبة التطابق: %.0f%%\n\n", icon, m.Similarity*100)
	}

	sb.WriteString(msgResultsPrompt)
	return sb.String()
}

// formatAdDetail renders the full view of one selected ad.
func formatAdDetail(ad *models.Ad) string {
	var sb strings.Builder
	sb.WriteString(ad.EnhancedText)
	sb.WriteString("\n")
	if ad.Price != nil {
		fmt.Fprintf(&sb, "\n💰 السعر: %s", arabic.FormatPrice(*ad.Price, ""))
	}
	if ad.Location != "" {
		fmt.Fprintf(&sb, "\n📍 الموقع: %s", ad.Location)
	}
	if ad.ContactInfo != "" {
		fmt.Fprintf(&sb, "\n📞 التواصل: %s", ad.ContactInfo)
	}
	if ad.Link != "" {
		fmt.Fprintf(&sb, "\n🔗 %s", ad.Link)
	}
	return sb.String()
}
