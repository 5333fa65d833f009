package domain

import "strings"

// Category agrupa las predicciones por tipo de pregunta. La precisión de la
// multitud varía mucho entre categorías (alta en objetivos medibles, pésima en
// predicciones troll), así que el profiler lleva contadores por categoría.
type Category string

const (
	CategoryPerformance Category = "performance" // ¿ganará / hará X jugadas?
	CategoryObjective   Category = "objective"   // métricas medibles: kills, tiempo, score
	CategoryEvent       Category = "event"       // ¿pasará X durante el stream?
	CategoryTroll       Category = "troll"       // preguntas broma / ruleta
	CategoryOther       Category = "other"
)

// Categories lista todas las categorías conocidas, en orden estable.
func Categories() []Category {
	return []Category{CategoryPerformance, CategoryObjective, CategoryEvent, CategoryTroll, CategoryOther}
}

// Palabras clave por categoría. Minúsculas; se comparan con strings.Contains
// sobre el título normalizado. La primera categoría que matchea gana.
var categoryKeywords = []struct {
	cat   Category
	words []string
}{
	{CategoryTroll, []string{"troll", "gift", "sub", "random", "coin flip", "ruleta", "gamba"}},
	{CategoryPerformance, []string{"win", "lose", "victory", "defeat", "clutch", "ace", "first blood", "rank up"}},
	{CategoryObjective, []string{"kill", "how many", "score", "under", "over", "time", "seconds", "minutes", "placement", "top "}},
	{CategoryEvent, []string{"will ", "happen", "today", "stream", "before", "die", "finish", "complete", "beat"}},
}

// ClassifyTitle clasifica el título de una predicción por palabras clave.
// Sin match devuelve CategoryOther.
func ClassifyTitle(title string) Category {
	t := strings.ToLower(title)
	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if strings.Contains(t, w) {
				return entry.cat
			}
		}
	}
	return CategoryOther
}
