package cbc

const (
	LanguageEnglish = "en-GB"
	LanguageWelsh   = "cy-GB"
)

// gsmCharset is the GSM 03.38 default alphabet plus its extension table,
// excluding the escape character itself.
const gsmCharset = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà" +
	"^{}\\[~]|€\f"

var gsmRunes = func() map[rune]struct{} {
	m := make(map[rune]struct{}, len(gsmCharset))
	for _, r := range gsmCharset {
		m[r] = struct{}{}
	}
	return m
}()

// InferLanguage returns cy-GB when content has any character outside the GSM
// alphabet, otherwise en-GB.
func InferLanguage(content string) string {
	for _, r := range content {
		if _, ok := gsmRunes[r]; !ok {
			return LanguageWelsh
		}
	}
	return LanguageEnglish
}
