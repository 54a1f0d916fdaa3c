package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRateLimited       = errors.New("rate limited")
	ErrAnalyzerDisabled  = errors.New("analyzer disabled")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrUnknownStatus     = errors.New("unknown status")
)

// Статус анализа статьи. Закрытый набор из пяти значений
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusProcessing
	StatusCompleted
	StatusSkipped
	StatusFailed
)

var statusNames = map[Status]string{
	StatusPending:    "PENDING",
	StatusProcessing: "PROCESSING",
	StatusCompleted:  "COMPLETED",
	StatusSkipped:    "SKIPPED",
	StatusFailed:     "FAILED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal сообщает, что из статуса нет автоматического выхода
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusFailed
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseStatus(v string) (Status, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	for status, name := range statusNames {
		if name == v {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, v)
}

// CanTransition описывает автоматические переходы.
// Возврат из терминального статуса делает только оператор через повторный анализ.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusSkipped || to == StatusFailed || to == StatusPending
	default:
		return false
	}
}

// Переход статуса. Единственный способ записать результат анализа в статью.
type Transition struct {
	ItemID int64
	From   Status
	To     Status
	// Новый отображаемый заголовок, пустой оставляет текущий
	Title    string
	Analysis *Analysis
}

func (t Transition) Validate() error {
	if !t.From.CanTransition(t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.From, t.To)
	}
	if t.Analysis != nil && t.To != StatusCompleted && t.To != StatusSkipped {
		return fmt.Errorf("%w: analysis can not be written on %s", ErrIllegalTransition, t.To)
	}
	if t.Title != "" && t.To != StatusCompleted {
		return fmt.Errorf("%w: title can not be replaced on %s", ErrIllegalTransition, t.To)
	}
	return nil
}

// Claim переводит статью в обработку
func Claim(id int64) Transition {
	return Transition{ItemID: id, From: StatusPending, To: StatusProcessing}
}

// Release возвращает взятую в работу статью обратно в очередь
func Release(id int64) Transition {
	return Transition{ItemID: id, From: StatusProcessing, To: StatusPending}
}

func Fail(id int64) Transition {
	return Transition{ItemID: id, From: StatusProcessing, To: StatusFailed}
}

// Resolve выбирает терминальный статус по ответу модели.
// Нерелевантные и низкокачественные статьи пропускаются, заголовок у них не меняется.
func Resolve(id int64, analysis Analysis, qualityFloor int) Transition {
	t := Transition{ItemID: id, From: StatusProcessing, Analysis: &analysis}
	if !analysis.IsCryptoRelated || analysis.QualityScore < qualityFloor {
		t.To = StatusSkipped
		return t
	}

	t.To = StatusCompleted
	t.Title = strings.TrimSpace(analysis.TranslatedTitle)
	return t
}
