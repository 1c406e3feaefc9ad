package utils

// Server-side translations for fixed keys only. Item texts and scale labels
// stay in the instrument registry and are served in English.

var translations = map[string]map[string]string{
	"en": {
		"health.ok": "ok",
	},
	"zh": {
		"health.ok": "好的",

		"level.minimal":           "极轻度",
		"level.mild":              "轻度",
		"level.moderate":          "中度",
		"level.moderately_severe": "中重度",
		"level.severe":            "重度",
		"level.low":               "低",
		"level.high":              "高",
		"level.excellent":         "极佳的",
		"level.good":              "良好的",
		"level.poor":              "较差的",

		"construct.phq9":     "抑郁",
		"construct.gad7":     "焦虑",
		"construct.pcl5":     "创伤后应激症状",
		"construct.stress":   "压力",
		"construct.wellness": "幸福感",
		"construct.sleep":    "睡眠质量",
	},
}

// SupportedLocales lists the locales translations exist for.
var SupportedLocales = []string{"en", "zh"}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if v, ok := lookup(locale, key); ok {
		return v
	}
	if v, ok := lookup("en", key); ok {
		return v
	}
	return key
}

func lookup(locale, key string) (string, bool) {
	m, ok := translations[locale]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// Interpretation renders a band label for locale from the instrument id and
// band level. The stored English label is returned when either part has no
// translation.
func Interpretation(locale, instrumentID, level, label string) string {
	if locale == "" || locale == "en" {
		return label
	}
	lv, ok := lookup(locale, "level."+level)
	if !ok {
		return label
	}
	c, ok := lookup(locale, "construct."+instrumentID)
	if !ok {
		return label
	}
	return lv + c
}
