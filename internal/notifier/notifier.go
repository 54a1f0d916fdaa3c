package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/botkit/markup"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/normalize"
)

// Сколько символов текста статьи попадает в пост
const excerptLimit = 400

type ArticleProvider interface {
	AllNotPosted(ctx context.Context, since time.Time, limit uint64) ([]model.NewsItem, error)
	MarkPosted(ctx context.Context, id int64) error
}

// Sender часть клиента телеграма, которая нужна для отправки. *tgbotapi.BotAPI ей соответствует
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier публикует в канал статьи, у которых завершился анализ
type Notifier struct {
	// Провайдер для статей
	articles ArticleProvider
	bot      Sender
	// Интервал, с которым notifier будет проверять есть ли новые статьи
	sendInterval time.Duration
	// Насколько далеко в прошлое смотрим в поисках неопубликованных статей
	lookupTimeWindow time.Duration
	// id канала куда мы будем постить статьи
	channelID int64
	now       func() time.Time
}

func New(
	articleProvider ArticleProvider,
	bot Sender,
	sendInterval time.Duration,
	lookupTimeWindow time.Duration,
	channelID int64,
) *Notifier {
	return &Notifier{
		articles:         articleProvider,
		bot:              bot,
		sendInterval:     sendInterval,
		lookupTimeWindow: lookupTimeWindow,
		channelID:        channelID,
		now:              time.Now,
	}
}

func (n *Notifier) Start(ctx context.Context) error {
	ticker := time.NewTicker(n.sendInterval)
	defer ticker.Stop()

	n.tick(ctx)

	for {
		select {
		case <-ticker.C:
			n.tick(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Ошибка отправки не должна останавливать публикацию, следующая попытка будет на следующем тике
func (n *Notifier) tick(ctx context.Context) {
	if _, err := n.SelectAndSendArticle(ctx); err != nil {
		slog.Error("failed to post article", "error", err)
	}
}

// SelectAndSendArticle выбирает одну самую свежую неопубликованную статью и отправляет ее в канал.
// Возвращает true если статья была отправлена.
func (n *Notifier) SelectAndSendArticle(ctx context.Context) (bool, error) {
	topOneArticles, err := n.articles.AllNotPosted(ctx, n.now().Add(-n.lookupTimeWindow), 1)
	if err != nil {
		return false, fmt.Errorf("select article: %w", err)
	}

	// Если нет статьи, то ничего не делаем
	if len(topOneArticles) == 0 {
		return false, nil
	}

	article := topOneArticles[0]

	if err := n.sendArticle(article); err != nil {
		return false, fmt.Errorf("send article %d: %w", article.ID, err)
	}

	// После того, как все получилось, отмечаем статью, как запощенную
	if err := n.articles.MarkPosted(ctx, article.ID); err != nil {
		return true, err
	}

	slog.Info("article posted", "id", article.ID, "source", article.SourceName)
	return true, nil
}

func (n *Notifier) sendArticle(article model.NewsItem) error {
	msg := tgbotapi.NewMessage(n.channelID, FormatArticle(article))
	// Даем понять телеграм, чтобы это сообщение парсилось как markdown сообщение
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	_, err := n.bot.Send(msg)
	return err
}

// FormatArticle собирает пост: жирный заголовок, строка с оценками, выдержка и ссылка
func FormatArticle(article model.NewsItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*%s*", markup.EscapeForMarkdown(article.Title))

	if a := article.Analysis; a != nil {
		meta := fmt.Sprintf("%s · %s · %s risk · %d/100", article.TopicCategory, a.Sentiment, a.RiskLevel, a.QualityScore)
		fmt.Fprintf(&b, "\n_%s_", markup.EscapeForMarkdown(meta))
	}

	if len(article.CoinTickers) > 0 {
		tickers := make([]string, 0, len(article.CoinTickers))
		for _, t := range article.CoinTickers {
			tickers = append(tickers, "#"+t)
		}
		fmt.Fprintf(&b, "\n%s", markup.EscapeForMarkdown(strings.Join(tickers, " ")))
	}

	// Полный контент богаче выжимки, выжимка нужна когда лента отдает только описание
	text := article.Content
	if strings.TrimSpace(normalize.StripHTML(text)) == "" {
		text = article.Summary
	}
	if excerpt := normalize.Excerpt(text, article.URL, excerptLimit); excerpt != "" {
		fmt.Fprintf(&b, "\n\n%s", markup.EscapeForMarkdown(excerpt))
	}

	fmt.Fprintf(&b, "\n\n%s", markup.EscapeForMarkdown(article.URL))

	return b.String()
}
