package adoption

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"julianmorley.ca/con-plar/petstore/pkg/models"
)

type SortBy string

const (
	SortByDate   SortBy = "date"
	SortByName   SortBy = "name"
	SortByStatus SortBy = "status"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// Query narrows and orders a list of applications for the admin view.
type Query struct {
	Search string `form:"search"`
	Status string `form:"status"`
	SortBy SortBy `form:"sort"`
}

// Filter returns the applications matching q, ordered by q.SortBy. Search is a
// case-insensitive substring match over first name, last name and selected pet
// name. Ties keep their storage order. An unknown sort key keeps storage
// order. apps is not modified.
func Filter(apps []models.Application, q Query) []models.Application {
	search := strings.ToLower(q.Search)
	out := make([]models.Application, 0, len(apps))
	for _, app := range apps {
		if q.Status != "" && q.Status != StatusAll && string(app.Status) != q.Status {
			continue
		}
		if search != "" && !matches(app, search) {
			continue
		}
		out = append(out, app)
	}

	switch q.SortBy {
	case SortByDate:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	case SortByName:
		c := collate.New(language.English)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].GetFullName(), out[j].GetFullName()) < 0
		})
	case SortByStatus:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Status < out[j].Status
		})
	}
	return out
}

func matches(app models.Application, search string) bool {
	if strings.Contains(strings.ToLower(app.FirstName), search) ||
		strings.Contains(strings.ToLower(app.LastName), search) {
		return true
	}
	return app.SelectedPet != nil && strings.Contains(strings.ToLower(app.SelectedPet.Name), search)
}
