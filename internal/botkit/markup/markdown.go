package markup

import "strings"

// Символы, которые MarkdownV2 телеграма требует экранировать в обычном тексте
const specialChars = "_*[]()~`>#+-=|{}.!\\"

var replacer = func() *strings.Replacer {
	pairs := make([]string, 0, len(specialChars)*2)
	for _, c := range specialChars {
		pairs = append(pairs, string(c), "\\"+string(c))
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeForMarkdown экранирует спец символы markdown специально для телеграма
func EscapeForMarkdown(src string) string {
	return replacer.Replace(src)
}

// Bold экранирует текст и делает его жирным
func Bold(src string) string {
	return "*" + EscapeForMarkdown(src) + "*"
}

// Code оборачивает текст в моноширинный блок, внутри экранируются только ` и \
func Code(src string) string {
	return "`" + strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(src) + "`"
}
