package model

import (
	"fmt"
	"strings"
	"time"
)

// Окно свежести, которое применяется к статьям перед сохранением
type Cutoff string

const (
	CutoffNone  Cutoff = "none"
	Cutoff24h   Cutoff = "24h"
	Cutoff3Days Cutoff = "3d"
)

func ParseCutoff(v string) (Cutoff, error) {
	switch c := Cutoff(strings.ToLower(strings.TrimSpace(v))); c {
	case "", CutoffNone:
		return CutoffNone, nil
	case Cutoff24h, Cutoff3Days:
		return c, nil
	default:
		return "", fmt.Errorf("unknown cutoff %q, expected none, 24h or 3d", v)
	}
}

// Since возвращает нижнюю границу даты публикации. Нулевое время означает без ограничений
func (c Cutoff) Since(now time.Time) time.Time {
	switch c {
	case Cutoff24h:
		return now.Add(-24 * time.Hour)
	case Cutoff3Days:
		return now.Add(-72 * time.Hour)
	default:
		return time.Time{}
	}
}

// Admits проверяет попадает ли дата публикации в окно
func (c Cutoff) Admits(publishedAt, now time.Time) bool {
	since := c.Since(now)
	if since.IsZero() {
		return true
	}
	return !publishedAt.Before(since)
}
