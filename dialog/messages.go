package dialog

import "fmt"

// Supported conversation languages.
var supportedLanguages = []string{"en", "fa", "ar", "ru"}

func isSupportedLanguage(lang string) bool {
	for _, l := range supportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// catalog holds every user-facing string, keyed by message id then language.
// English is the fallback for missing translations.
var catalog = map[string]map[string]string{
	"greeting": {
		"en": "Welcome! Please choose your language:",
		"fa": "خوش آمدید! لطفاً زبان خود را انتخاب کنید:",
		"ar": "أهلاً بك! الرجاء اختيار لغتك:",
		"ru": "Добро пожаловать! Пожалуйста, выберите язык:",
	},
	"ask_goal": {
		"en": "Great! What brings you here today?",
		"fa": "عالی! امروز دنبال چه هستید؟",
		"ar": "رائع! ما الذي تبحث عنه اليوم؟",
		"ru": "Отлично! Что вас интересует?",
	},
	"goal_investment": {
		"en": "Investment",
		"fa": "سرمایه‌گذاری",
		"ar": "استثمار",
		"ru": "Инвестиции",
	},
	"goal_living": {
		"en": "A home to live in",
		"fa": "خانه برای زندگی",
		"ar": "منزل للسكن",
		"ru": "Жильё для себя",
	},
	"goal_residency": {
		"en": "Residency visa",
		"fa": "اقامت",
		"ar": "تأشيرة إقامة",
		"ru": "Резидентская виза",
	},
	"goal_rent": {
		"en": "Renting",
		"fa": "اجاره",
		"ar": "إيجار",
		"ru": "Аренда",
	},
	"ask_contact": {
		"en": "Perfect. To send you a tailored selection, may I have your name and phone number? You can also share your contact with the button below.",
		"fa": "عالی. برای ارسال پیشنهادهای مناسب، لطفاً نام و شماره تماس خود را بفرستید. می‌توانید از دکمه زیر هم استفاده کنید.",
		"ar": "ممتاز. لإرسال عروض مناسبة لك، هل يمكنني الحصول على اسمك ورقم هاتفك؟ يمكنك أيضاً مشاركة جهة الاتصال بالزر أدناه.",
		"ru": "Отлично. Чтобы отправить подходящую подборку, напишите ваше имя и номер телефона. Можно также поделиться контактом кнопкой ниже.",
	},
	"share_contact": {
		"en": "Share my contact",
		"fa": "اشتراک‌گذاری مخاطب",
		"ar": "مشاركة جهة الاتصال",
		"ru": "Поделиться контактом",
	},
	"invalid_phone": {
		"en": "That doesn't look like a valid phone number. Please send it like +971501234567.",
		"fa": "این شماره معتبر به نظر نمی‌رسد. لطفاً به این شکل بفرستید: +971501234567",
		"ar": "لا يبدو هذا رقم هاتف صحيحاً. الرجاء إرساله بهذا الشكل: +971501234567",
		"ru": "Это не похоже на корректный номер. Отправьте его в формате +971501234567.",
	},
	"ask_buy_or_rent": {
		"en": "Are you looking to buy or to rent?",
		"fa": "قصد خرید دارید یا اجاره؟",
		"ar": "هل تريد الشراء أم الإيجار؟",
		"ru": "Вы хотите купить или арендовать?",
	},
	"buy": {
		"en": "Buy",
		"fa": "خرید",
		"ar": "شراء",
		"ru": "Купить",
	},
	"rent": {
		"en": "Rent",
		"fa": "اجاره",
		"ar": "إيجار",
		"ru": "Арендовать",
	},
	"ask_category": {
		"en": "Which kind of property are you interested in?",
		"fa": "به چه نوع ملکی علاقه دارید؟",
		"ar": "ما نوع العقار الذي يهمك؟",
		"ru": "Какой тип недвижимости вас интересует?",
	},
	"category_residential": {
		"en": "Residential",
		"fa": "مسکونی",
		"ar": "سكني",
		"ru": "Жилая",
	},
	"category_commercial": {
		"en": "Commercial",
		"fa": "تجاری",
		"ar": "تجاري",
		"ru": "Коммерческая",
	},
	"ask_budget_buy": {
		"en": "What is your budget range?",
		"fa": "بودجه شما چقدر است؟",
		"ar": "ما هو نطاق ميزانيتك؟",
		"ru": "Какой у вас бюджет?",
	},
	"ask_budget_rent": {
		"en": "What is your annual rental budget?",
		"fa": "بودجه اجاره سالانه شما چقدر است؟",
		"ar": "ما هي ميزانية الإيجار السنوية؟",
		"ru": "Какой у вас годовой бюджет аренды?",
	},
	"ask_property_type": {
		"en": "And what type of property?",
		"fa": "و چه نوع واحدی؟",
		"ar": "وما نوع الوحدة؟",
		"ru": "И какой тип объекта?",
	},
	"value_prop_intro": {
		"en": "Here is what I found for you:",
		"fa": "این موارد را برای شما پیدا کردم:",
		"ar": "إليك ما وجدته لك:",
		"ru": "Вот что я нашёл для вас:",
	},
	"hot_market": {
		"en": "The market is moving fast right now and matching units sell within days. Let me notify you the moment something fitting appears.",
		"fa": "بازار الان خیلی داغ است و واحدهای مشابه ظرف چند روز فروخته می‌شوند. به محض پیدا شدن مورد مناسب خبرتان می‌کنم.",
		"ar": "السوق يتحرك بسرعة الآن والوحدات المطابقة تُباع خلال أيام. سأخبرك فور ظهور ما يناسبك.",
		"ru": "Рынок сейчас очень активен, подходящие объекты уходят за считанные дни. Я сообщу вам, как только появится вариант.",
	},
	"hard_gate": {
		"en": "I can send you the full details and a personalised report — I just need your phone number first.",
		"fa": "می‌توانم جزئیات کامل و گزارش اختصاصی برایتان بفرستم — فقط اول شماره تماستان را لازم دارم.",
		"ar": "يمكنني إرسال التفاصيل الكاملة وتقرير مخصص لك — أحتاج فقط رقم هاتفك أولاً.",
		"ru": "Я могу отправить полные данные и персональный отчёт — сначала мне нужен ваш номер телефона.",
	},
	"engagement_fallback": {
		"en": "Happy to help — you can ask me anything about these properties, or tap below to arrange a viewing.",
		"fa": "در خدمتم — هر سوالی درباره این املاک دارید بپرسید، یا برای بازدید دکمه زیر را بزنید.",
		"ar": "يسعدني مساعدتك — اسألني أي شيء عن هذه العقارات، أو اضغط أدناه لترتيب معاينة.",
		"ru": "С радостью помогу — спрашивайте о любом объекте или нажмите ниже, чтобы записаться на просмотр.",
	},
	"book_viewing": {
		"en": "Book a viewing",
		"fa": "رزرو بازدید",
		"ar": "حجز معاينة",
		"ru": "Записаться на просмотр",
	},
	"offer_slots": {
		"en": "When would suit you for a viewing?",
		"fa": "چه زمانی برای بازدید مناسب است؟",
		"ar": "ما الوقت المناسب لك للمعاينة؟",
		"ru": "Когда вам удобно посмотреть объект?",
	},
	"no_slots": {
		"en": "All viewing slots are taken at the moment. A colleague will call you to arrange a time.",
		"fa": "فعلاً همه زمان‌های بازدید پر است. همکارم برای هماهنگی با شما تماس می‌گیرد.",
		"ar": "جميع مواعيد المعاينة محجوزة حالياً. سيتصل بك زميلي لترتيب موعد.",
		"ru": "Все слоты для просмотра заняты. Коллега свяжется с вами, чтобы договориться о времени.",
	},
	"slot_booked": {
		"en": "Booked! We'll see you then. A confirmation is on its way.",
		"fa": "رزرو شد! می‌بینمتان. تأییدیه در راه است.",
		"ar": "تم الحجز! نراك حينها. التأكيد في الطريق.",
		"ru": "Забронировано! До встречи. Подтверждение уже в пути.",
	},
	"slot_taken": {
		"en": "Sorry, that slot was just taken. Here are the remaining times:",
		"fa": "متأسفم، آن زمان همین الان رزرو شد. زمان‌های باقی‌مانده:",
		"ar": "عذراً، تم حجز هذا الموعد للتو. إليك المواعيد المتبقية:",
		"ru": "Увы, этот слот только что заняли. Вот оставшееся время:",
	},
	"completed": {
		"en": "Thank you! Our specialist will take it from here.",
		"fa": "متشکرم! از اینجا به بعد کارشناس ما پیگیری می‌کند.",
		"ar": "شكراً لك! سيتابع الأمر مختصنا من هنا.",
		"ru": "Спасибо! Дальше с вами будет работать наш специалист.",
	},
	"zombie_ack": {
		"en": "I'll look at that shortly — first, please pick one of the options below.",
		"fa": "به زودی بررسی می‌کنم — اول لطفاً یکی از گزینه‌های زیر را انتخاب کنید.",
		"ar": "سألقي نظرة عليه قريباً — أولاً، الرجاء اختيار أحد الخيارات أدناه.",
		"ru": "Я посмотрю это чуть позже — сначала выберите один из вариантов ниже.",
	},
	"main_menu": {
		"en": "Hello! What can I help you with?",
		"fa": "سلام! چطور می‌توانم کمک کنم؟",
		"ar": "مرحباً! كيف يمكنني مساعدتك؟",
		"ru": "Здравствуйте! Чем могу помочь?",
	},
	"ghost_followup": {
		"en": "A colleague just found the kind of property you were looking for — when would be a good time to talk?",
		"fa": "همکارم همین الان ملکی مثل چیزی که می‌خواستید پیدا کرد — کی وقت مناسبی برای صحبت است؟",
		"ar": "وجد زميلي للتو العقار الذي كنت تبحث عنه — متى يكون الوقت مناسباً للحديث؟",
		"ru": "Коллега только что нашёл объект, который вы искали. Когда вам удобно поговорить?",
	},
	"match_intro": {
		"en": "New on the market — this just matched your search:",
		"fa": "تازه وارد بازار شد — دقیقاً مطابق جستجوی شما:",
		"ar": "جديد في السوق — يطابق بحثك تماماً:",
		"ru": "Новинка на рынке, точно по вашему запросу:",
	},
	"admin_set": {
		"en": "This chat is now the alert destination for hot leads.",
		"fa": "این گفتگو از حالا مقصد هشدارهای سرنخ داغ است.",
		"ar": "هذه المحادثة أصبحت الآن وجهة تنبيهات العملاء المهمين.",
		"ru": "Этот чат теперь получает уведомления о горячих лидах.",
	},
	"set_admin_failed": {
		"en": "Could not register this chat for alerts, please try again later.",
		"fa": "ثبت این گفتگو برای هشدارها ممکن نشد، لطفاً بعداً دوباره تلاش کنید.",
		"ar": "تعذر تسجيل هذه المحادثة للتنبيهات، حاول لاحقاً من فضلك.",
		"ru": "Не удалось зарегистрировать чат для уведомлений, попробуйте позже.",
	},
	"daily_digest": {
		"en": "📊 Daily summary: %d new leads, %d hot leads in the last 24 hours.",
		"fa": "📊 خلاصه روزانه: %d سرنخ جدید، %d سرنخ داغ در ۲۴ ساعت گذشته.",
		"ar": "📊 الملخص اليومي: %d عميل جديد، %d عميل مهم خلال آخر ٢٤ ساعة.",
		"ru": "📊 Итоги дня: %d новых лидов, %d горячих за последние 24 часа.",
	},
	"transient_retry": {
		"en": "One moment please — something went wrong on our side. Please try again.",
		"fa": "یک لحظه — مشکلی از سمت ما پیش آمد. لطفاً دوباره تلاش کنید.",
		"ar": "لحظة من فضلك — حدث خطأ من جهتنا. الرجاء المحاولة مرة أخرى.",
		"ru": "Секундочку — у нас возникла небольшая неполадка. Попробуйте ещё раз.",
	},
}

// Button label sets that are not tied to a single message.
var languageButtons = []struct {
	Label   string
	Payload string
}{
	{"English", "lang_en"},
	{"فارسی", "lang_fa"},
	{"العربية", "lang_ar"},
	{"Русский", "lang_ru"},
}

var propertyTypeButtons = map[string][]string{
	// category -> payload suffixes
	"residential": {"apartment", "villa", "townhouse", "penthouse"},
	"commercial":  {"office", "shop", "warehouse"},
}

var propertyTypeLabels = map[string]map[string]string{
	"apartment": {"en": "Apartment", "fa": "آپارتمان", "ar": "شقة", "ru": "Квартира"},
	"villa":     {"en": "Villa", "fa": "ویلا", "ar": "فيلا", "ru": "Вилла"},
	"townhouse": {"en": "Townhouse", "fa": "تاون‌هاوس", "ar": "تاون هاوس", "ru": "Таунхаус"},
	"penthouse": {"en": "Penthouse", "fa": "پنت‌هاوس", "ar": "بنتهاوس", "ru": "Пентхаус"},
	"office":    {"en": "Office", "fa": "دفتر کار", "ar": "مكتب", "ru": "Офис"},
	"shop":      {"en": "Shop", "fa": "مغازه", "ar": "محل", "ru": "Магазин"},
	"warehouse": {"en": "Warehouse", "fa": "انبار", "ar": "مستودع", "ru": "Склад"},
}

// T returns the localised message for a key, falling back to English.
func T(lang, key string, args ...any) string {
	msgs, ok := catalog[key]
	if !ok {
		return key
	}
	msg, ok := msgs[lang]
	if !ok {
		msg = msgs["en"]
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

func propertyTypeLabel(lang, propertyType string) string {
	labels, ok := propertyTypeLabels[propertyType]
	if !ok {
		return propertyType
	}
	if label, ok := labels[lang]; ok {
		return label
	}
	return labels["en"]
}
