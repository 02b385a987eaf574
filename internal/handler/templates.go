package handler

import (
	"embed"
	"html/template"
	"sort"
	"time"

	"github.com/noah-isme/aprendices-roster/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var notificationClasses = map[models.NotificationLevel]string{
	models.NotificationSuccess: "bg-green-100 text-green-800",
	models.NotificationError:   "bg-red-100 text-red-800",
	models.NotificationWarning: "bg-yellow-100 text-yellow-800",
	models.NotificationInfo:    "bg-blue-100 text-blue-800",
}

var templateFuncs = template.FuncMap{
	"notificationClass": func(level models.NotificationLevel) string {
		return notificationClasses[level]
	},
	"formatTime": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Local().Format("02/01/2006 15:04")
	},
	"statusEntries": func(stats *models.CohortStatistics) []statusCount {
		if stats == nil {
			return nil
		}
		entries := make([]statusCount, 0, len(stats.CountsByStatus))
		for status, count := range stats.CountsByStatus {
			entries = append(entries, statusCount{Status: status, Count: count})
		}
		sortStatusCounts(entries)
		return entries
	},
}

type statusCount struct {
	Status string
	Count  int
}

func sortStatusCounts(entries []statusCount) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Status < entries[j].Status })
}

// Templates parses the embedded page templates for gin's HTML renderer.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}
