package retriever

import (
	"time"

	"memoire/internal/models"
	"memoire/internal/store"
)

const candidateLimit = 100

// BuildCandidateQuery translates a ParsedQuery plus profile filters into a
// store.CandidateQuery: AND of OR-groups. Profile date filters
// (filters.date_range_days) take precedence over any relative-date phrase
// ParseQuery already found.
func BuildCandidateQuery(now time.Time, parsed ParsedQuery, filters models.QueryFilters) store.CandidateQuery {
	dateDebut, dateFin := parsed.DateDebut, parsed.DateFin
	if filters.DateRangeDays > 0 {
		debut := now.Add(-time.Duration(filters.DateRangeDays) * 24 * time.Hour)
		dateDebut, dateFin = &debut, &now
	}

	var groups []store.Group
	if dateDebut != nil {
		groups = append(groups, store.Group{store.DateRangeCondition(dateDebut.Unix())})
	}
	if dateFin != nil {
		groups = append(groups, store.Group{{SQL: "timestamp_epoch <= ?", Arg: dateFin.Unix()}})
	}

	personnes := parsed.Personnes
	if len(filters.Personnes) > 0 {
		personnes = append(append([]string{}, personnes...), filters.Personnes...)
	}
	if len(personnes) > 3 {
		personnes = personnes[:3]
	}

	switch {
	case len(personnes) > 0:
		var group store.Group
		for _, p := range personnes {
			group = append(group, store.PersonneCondition(p))
		}
		groups = append(groups, group)
	case len(parsed.MotsCles) > 0:
		var group store.Group
		for _, mot := range parsed.MotsCles {
			group = append(group,
				store.ResumeKeywordCondition(mot),
				store.SujetKeywordCondition(mot),
				store.ProjetKeywordCondition(mot),
				store.LieuKeywordCondition(mot),
			)
		}
		groups = append(groups, group)
	}

	if len(parsed.TagsExplicites) > 0 {
		var group store.Group
		for _, tag := range parsed.TagsExplicites {
			group = append(group, store.TagProximityCondition(tag))
		}
		groups = append(groups, group)
	}

	return store.CandidateQuery{Groups: groups, Limit: candidateLimit}
}
