// Package export turns filtered attendance into flat CSV rows. The
// field registry maps stable field keys to pure extraction functions
// over a typed row context, so callers pick columns declaratively.
package export

import (
	"strconv"

	"impactstats/internal/stats"
	"impactstats/internal/store"
)

// RowContext is one attendance row with everything a field getter
// may need. Neighborhood is nil when the participant has none.
type RowContext struct {
	Presence     store.Presence
	Participant  store.Participant
	Session      store.Session
	Workshop     store.Workshop
	Neighborhood *store.Neighborhood
}

// Field is one exportable column.
type Field struct {
	Key   string
	Label string
	Get   func(RowContext) string
}

// DefaultFields is the column set used when the caller picks none.
var DefaultFields = []string{
	"participant_nom",
	"participant_prenom",
	"atelier_nom",
	"atelier_secteur",
	"session_date",
	"session_type",
}

// Fields lists every exportable column in registry order. Keys and
// labels keep the historical export's French spellings so existing
// downstream spreadsheets keep working.
var Fields = []Field{
	{"participant_id", "ID participant", func(c RowContext) string {
		return strconv.FormatInt(c.Participant.ID, 10)
	}},
	{"participant_nom", "Nom", func(c RowContext) string {
		return c.Participant.LastName
	}},
	{"participant_prenom", "Prénom", func(c RowContext) string {
		return c.Participant.FirstName
	}},
	{"participant_email", "Email", func(c RowContext) string {
		return orEmpty(c.Participant.Email)
	}},
	{"participant_telephone", "Téléphone", func(c RowContext) string {
		return orEmpty(c.Participant.Phone)
	}},
	{"participant_ville", "Ville", func(c RowContext) string {
		return orEmpty(c.Participant.City)
	}},
	{"participant_quartier", "Quartier", func(c RowContext) string {
		if c.Neighborhood == nil {
			return ""
		}
		return c.Neighborhood.Name
	}},
	{"participant_genre", "Genre", func(c RowContext) string {
		return orEmpty(c.Participant.Gender)
	}},
	{"participant_type_public", "Type public", func(c RowContext) string {
		return c.Participant.PublicType
	}},
	{"participant_date_naissance", "Date naissance", func(c RowContext) string {
		return orEmpty(c.Participant.BirthDate)
	}},
	{"session_id", "ID session", func(c RowContext) string {
		return strconv.FormatInt(c.Session.ID, 10)
	}},
	{"session_date", "Date session", func(c RowContext) string {
		return c.Session.EffectiveDate()
	}},
	{"session_type", "Type session", func(c RowContext) string {
		return c.Session.Kind
	}},
	{"session_statut", "Statut session", func(c RowContext) string {
		return c.Session.Status
	}},
	{"session_heure_debut", "Heure début", func(c RowContext) string {
		return c.Session.EffectiveStart()
	}},
	{"session_heure_fin", "Heure fin", func(c RowContext) string {
		return c.Session.EffectiveEnd()
	}},
	{"session_duree_minutes", "Durée (minutes)", func(c RowContext) string {
		return durationMinutes(c)
	}},
	{"atelier_id", "ID atelier", func(c RowContext) string {
		return strconv.FormatInt(c.Workshop.ID, 10)
	}},
	{"atelier_nom", "Nom atelier", func(c RowContext) string {
		return c.Workshop.Name
	}},
	{"atelier_secteur", "Secteur atelier", func(c RowContext) string {
		return c.Workshop.Sector
	}},
	{"atelier_type", "Type atelier", func(c RowContext) string {
		return c.Workshop.Kind
	}},
	{"presence_id", "ID présence", func(c RowContext) string {
		return strconv.FormatInt(c.Presence.ID, 10)
	}},
	{"presence_motif", "Motif", func(c RowContext) string {
		return orEmpty(c.Presence.Motif)
	}},
	{"presence_motif_autre", "Motif autre", func(c RowContext) string {
		return orEmpty(c.Presence.MotifAutre)
	}},
	{"presence_created_at", "Date d'émargement", func(c RowContext) string {
		return c.Presence.CreatedAt
	}},
}

var fieldsByKey = func() map[string]Field {
	m := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		m[f.Key] = f
	}
	return m
}()

// Resolve maps field keys to registry entries, dropping unknown
// keys. An empty or fully unknown selection falls back to
// DefaultFields.
func Resolve(keys []string) []Field {
	var out []Field
	for _, k := range keys {
		if f, ok := fieldsByKey[k]; ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		for _, k := range DefaultFields {
			out = append(out, fieldsByKey[k])
		}
	}
	return out
}

func orEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// durationMinutes mirrors the engine's duration derivation: end
// minus start when both parse, else the workshop default, else "".
func durationMinutes(c RowContext) string {
	start, okStart := stats.ParseTimeOfDay(c.Session.EffectiveStart())
	end, okEnd := stats.ParseTimeOfDay(c.Session.EffectiveEnd())
	if okStart && okEnd && end > start {
		return strconv.Itoa(end - start)
	}
	if d := c.Workshop.DefaultDurationMin; d != nil && *d > 0 {
		return strconv.Itoa(*d)
	}
	return ""
}
