package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"xsushi-ratio-tracker/internal/fetcher"
	"xsushi-ratio-tracker/internal/storage"
)

const dateLayout = "2006-01-02"

// crawlerAgents are the user-agent fragments that get pre-rendered social
// meta tags instead of the bare single-page app shell.
var crawlerAgents = []string{
	"facebookexternalhit",
	"Twitterbot",
	"TelegramBot",
	"Slackbot",
	"Discordbot",
	"LinkedInBot",
	"WhatsApp",
}

type ratioPointJSON struct {
	Timestamp string `json:"timestamp"`
	Ratio     string `json:"ratio"`
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func handleReady(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if pinger == nil {
			http.Error(w, `{"status":"not ready"}`, http.StatusServiceUnavailable)
			return
		}
		if err := pinger.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"not ready"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// handleRatioData returns the daily series as JSON. Both bounds of the
// requested date range are inclusive; without parameters the whole series
// is returned.
func handleRatioData(ratios storage.RatioStore, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
			return
		}

		points, err := ratios.ListBetween(r.Context(), from, to)
		if err != nil {
			logger.Error().Err(err).Msg("list ratio points failed")
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		out := make([]ratioPointJSON, 0, len(points))
		for _, p := range points {
			out = append(out, ratioPointJSON{
				Timestamp: p.ObservedAt.UTC().Format(time.RFC3339),
				Ratio:     p.Ratio.StringFixed(fetcher.RatioPrecision),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

// parseRange turns from/to date strings into an inclusive timestamp window.
// 空参数回退到开区间端点。
func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()

	if fromStr != "" {
		day, err := time.ParseInLocation(dateLayout, fromStr, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", fromStr)
		}
		from = day
	}
	if toStr != "" {
		day, err := time.ParseInLocation(dateLayout, toStr, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", toStr)
		}
		// 含右端点: 推进到当日最后一纳秒。
		to = day.Add(24*time.Hour - time.Nanosecond)
	}

	if !from.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date precedes from date")
	}
	return from, to, nil
}

func handleRobots() http.HandlerFunc {
	body := "User-agent: *\nAllow: /\nAllow: /static/\nDisallow: /api/\n"
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func handleFavicon(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(staticDir, "favicon.ico")
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}
}

// handleIndex serves the frontend shell. For known crawlers the response is
// the same shell with ratio-bearing meta tags injected, so link previews show
// live data without executing any script.
func handleIndex(staticDir string, ratios storage.RatioStore, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(staticDir, "index.html")
		body, err := os.ReadFile(path)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		page := string(body)
		if isCrawler(r.UserAgent()) {
			if meta := crawlerMeta(r, ratios, logger); meta != "" {
				page = strings.Replace(page, "</head>", meta+"</head>", 1)
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}
}

func isCrawler(userAgent string) bool {
	for _, fragment := range crawlerAgents {
		if strings.Contains(userAgent, fragment) {
			return true
		}
	}
	return false
}

func crawlerMeta(r *http.Request, ratios storage.RatioStore, logger zerolog.Logger) string {
	points, err := ratios.ListRecent(r.Context(), 1)
	if err != nil || len(points) == 0 {
		if err != nil {
			logger.Error().Err(err).Msg("load latest point for crawler meta failed")
		}
		return ""
	}

	latest := points[0]
	description := fmt.Sprintf("Sushi/xSushi = %s as of %s",
		latest.Ratio.StringFixed(fetcher.RatioPrecision),
		latest.ObservedAt.UTC().Format(dateLayout))

	return fmt.Sprintf(
		"<meta property=\"og:title\" content=\"xSushi Ratio Tracker\">\n"+
			"<meta property=\"og:description\" content=%q>\n"+
			"<meta name=\"description\" content=%q>\n",
		description, description)
}
