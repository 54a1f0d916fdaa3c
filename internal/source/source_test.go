package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Test feed</title>
  <link>https://example.com</link>
  <description>feed</description>
  <item>
    <title>Bitcoin hits new high</title>
    <link>https://example.com/btc</link>
    <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    <category>Markets</category>
    <description>short</description>
    <content:encoded><![CDATA[<p>Bitcoin climbed above its previous record on heavy volume.</p>]]></content:encoded>
  </item>
  <item>
    <title>No link here</title>
    <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    <description>dropped</description>
  </item>
  <item>
    <title>Broken date</title>
    <link>https://example.com/date</link>
    <pubDate>sometime last week</pubDate>
    <description>date falls back</description>
  </item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom feed</title>
  <id>urn:feed</id>
  <updated>2024-01-02T03:04:05Z</updated>
  <entry>
    <title>Ethereum upgrade ships</title>
    <id>urn:entry:1</id>
    <link href="https://example.com/eth"/>
    <updated>2024-01-02T03:04:05Z</updated>
    <summary>Upgrade summary</summary>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	items, err := Parse([]byte(rssFeed), "Example", now)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(items))

	first := items[0]
	assert.Equal(t, "Bitcoin hits new high", first.Title)
	assert.Equal(t, "https://example.com/btc", first.Link)
	assert.Equal(t, "Example", first.SourceName)
	assert.Equal(t, []string{"Markets"}, first.Categories)
	assert.Equal(t, int64(1136214245), first.Date.Unix())
	assert.Equal(t, "short", first.Description)
	assert.Equal(t, true, strings.Contains(first.Content, "previous record"))

	broken := items[1]
	assert.Equal(t, "Broken date", broken.Title)
	assert.Equal(t, now.Unix(), broken.Date.Unix())
}

func TestParseAtom(t *testing.T) {
	items, err := Parse([]byte(atomFeed), "Atom", time.Now())
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(items))

	assert.Equal(t, "https://example.com/eth", items[0].Link)
	assert.Equal(t, "Upgrade summary", items[0].Description)
	assert.Equal(t, int64(1704164645), items[0].Date.Unix())
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse([]byte("definitely not a feed"), "Bad", time.Now())
	assert.NotEqual(t, nil, err)
}

func TestLongest(t *testing.T) {
	assert.Equal(t, "three", longest("one", "three", "two"))
	assert.Equal(t, "", longest("", ""))
	// руны, а не байты
	assert.Equal(t, "abcd", longest("比特币", "abcd"))
}

func TestParseProxy(t *testing.T) {
	p, err := ParseProxy("allorigins|https://api.allorigins.win/get?url={url}|contents")
	assert.Equal(t, nil, err)
	assert.Equal(t, "allorigins", p.Name())
	assert.Equal(t, "contents", p.JSONField)

	_, err = ParseProxy("broken")
	assert.NotEqual(t, nil, err)

	_, err = ParseProxy("noplaceholder|https://proxy.example.com/")
	assert.NotEqual(t, nil, err)
}

func TestRetrieverFallsBackToProxy(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer direct.Close()

	var proxied string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = r.URL.Query().Get("url")
		_ = json.NewEncoder(w).Encode(map[string]string{"contents": rssFeed})
	}))
	defer proxy.Close()

	r := NewRetriever(time.Second, 0,
		DirectStrategy{},
		ProxyStrategy{Label: "json", Template: proxy.URL + "/get?url={url}", JSONField: "contents"},
	)
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }

	body, err := r.Retrieve(context.Background(), direct.URL+"/feed")
	assert.Equal(t, nil, err)
	assert.Equal(t, rssFeed, string(body))

	target, err := url.Parse(proxied)
	assert.Equal(t, nil, err)
	assert.Equal(t, "1700000000000", target.Query().Get("t"))
}

func TestRetrieverSkipsShortBody(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("   "))
	}))
	defer empty.Close()

	full := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer full.Close()

	r := NewRetriever(time.Second, 0,
		DirectStrategy{},
		ProxyStrategy{Label: "raw", Template: full.URL + "/?src={url}"},
	)

	body, err := r.Retrieve(context.Background(), empty.URL)
	assert.Equal(t, nil, err)
	assert.Equal(t, atomFeed, string(body))
}

func TestRetrieverAllStrategiesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewRetriever(time.Second, 0,
		DirectStrategy{},
		ProxyStrategy{Label: "raw", Template: srv.URL + "/?src={url}"},
	)

	_, err := r.Retrieve(context.Background(), srv.URL)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, true, strings.HasPrefix(err.Error(), "all strategies failed, last error: raw: HTTP 502"))
}

func TestRetrieverStrategyTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	r := NewRetriever(50*time.Millisecond, 0, DirectStrategy{})

	_, err := r.Retrieve(context.Background(), slow.URL)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, true, strings.HasPrefix(err.Error(), "all strategies failed"))
}

func TestSourceTest(t *testing.T) {
	emptyFeed := `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty channel</title><link>https://example.com</link></channel></rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			_, _ = w.Write([]byte(emptyFeed))
			return
		}
		_, _ = w.Write([]byte(rssFeed))
	}))
	defer srv.Close()

	r := NewRetriever(time.Second, 0, DirectStrategy{})

	count, err := Test(context.Background(), r, srv.URL+"/feed")
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, count)

	_, err = Test(context.Background(), r, srv.URL+"/empty")
	assert.Equal(t, true, errors.Is(err, ErrFeedEmpty))
}
