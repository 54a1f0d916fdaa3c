package fetcher

import "time"

// Результат опроса одного источника
type SourceReport struct {
	SourceID string `json:"sourceId"`
	Name     string `json:"name"`
	// Сколько элементов отдала лента
	Fetched int `json:"fetched"`
	// Сколько прошло окно свежести и фильтр
	Admitted int `json:"admitted"`
	// Сколько новых строк появилось в базе
	Stored int    `json:"stored"`
	Error  string `json:"error,omitempty"`
}

func (r *SourceReport) setError(err error) {
	r.Error = err.Error()
}

func (r SourceReport) Failed() bool {
	return r.Error != ""
}

type Report struct {
	Sources []SourceReport `json:"sources"`
	// Attempted сколько статей предложено базе, Inserted сколько из них оказались новыми
	Attempted  int       `json:"attempted"`
	Inserted   int       `json:"inserted"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (r Report) Failed() int {
	var n int
	for _, s := range r.Sources {
		if s.Failed() {
			n++
		}
	}
	return n
}

// Результат проверки источника
type TestResult struct {
	SourceID string `json:"sourceId"`
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Items    int    `json:"items"`
	Error    string `json:"error,omitempty"`
}
