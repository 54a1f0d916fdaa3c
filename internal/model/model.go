package model

import "time"

// Статья как элемент ленты, в том виде, в котором ее отдал фидер
type Item struct {
	// Название статьи
	Title string
	// Категории статей, объявленные самим источником
	Categories []string
	// Ссылка
	Link string
	// Дата публикации в источнике
	Date time.Time
	// Самый длинный из вариантов контента (content:encoded, description, content)
	Content string
	// Текст, из которого строится краткая выжимка
	Description string
	// Имя источника
	SourceName string
}

type HealthStatus string

const (
	HealthUnknown HealthStatus = "unknown"
	HealthOK      HealthStatus = "ok"
	HealthError   HealthStatus = "error"
)

// Состояние источника после последнего опроса или теста
type Health struct {
	Status      HealthStatus `json:"status"`
	LastError   string       `json:"lastError,omitempty"`
	LastCheckAt time.Time    `json:"lastCheckAt"`
}

// Модель источника
type Source struct {
	ID string `json:"id"`
	// Имя
	Name string `json:"name"`
	// Урл откуда забираем данные
	FeedURL string `json:"feedUrl"`
	Enabled bool   `json:"enabled"`
	Health  Health `json:"health"`
	// Время создания
	CreatedAt time.Time `json:"createdAt"`
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type Entities struct {
	Projects     []string `json:"projects"`
	Institutions []string `json:"institutions"`
	Events       []string `json:"events"`
}

// Результат внешнего анализа. До завершения обогащения у статьи его нет
type Analysis struct {
	TranslatedTitle string    `json:"translatedTitle"`
	Sentiment       Sentiment `json:"sentiment"`
	QualityScore    int       `json:"qualityScore"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	Language        string    `json:"language"`
	IsCryptoRelated bool      `json:"isCryptoRelated"`
	Entities        Entities  `json:"entities"`
}

// Normalize приводит ответ модели к допустимым значениям
func (a *Analysis) Normalize() {
	switch a.Sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		a.Sentiment = SentimentNeutral
	}

	switch a.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		a.RiskLevel = RiskLow
	}

	a.QualityScore = min(max(a.QualityScore, 0), 100)
}

// Модель статьи которая используется у нас внутри а не в RSS
type NewsItem struct {
	ID          int64  `json:"id"`
	Fingerprint string `json:"fingerprint"`
	// Отображаемый заголовок, после обогащения это переведенный заголовок
	Title         string `json:"title"`
	OriginalTitle string `json:"originalTitle"`
	URL           string `json:"url"`
	SourceName    string `json:"sourceName"`
	// Время публикации в источнике
	PublishedAt time.Time `json:"publishedAt"`
	FetchedAt   time.Time `json:"fetchedAt"`
	// Исходная разметка, после создания не меняется
	Content       string    `json:"content"`
	Summary       string    `json:"summary"`
	Tags          []string  `json:"tags"`
	CoinTickers   []string  `json:"coinTickers"`
	TopicCategory string    `json:"topicCategory"`
	Status        Status    `json:"status"`
	Analysis      *Analysis `json:"analysis,omitempty"`
	// Последний рерайт статьи, живет отдельно от статусов
	Rewrite *Rewrite `json:"rewrite,omitempty"`
}

// Вход для внешнего классификатора
type AnalysisInput struct {
	Title      string
	Excerpt    string
	SourceName string
}

// Ответ классификатора по одной статье: либо анализ, либо ошибка по этой статье
type AnalysisResult struct {
	Analysis *Analysis
	Err      error
}
