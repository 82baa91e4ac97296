// Package importer loads JSON dataset dumps into the store. A dump
// is a single object with one array per entity; both the current
// English key spellings and the legacy French ones are accepted, so
// exports from the historical back office load unchanged.
package importer

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"impactstats/internal/log"
	"impactstats/internal/store"
)

// Summary counts what one import run touched.
type Summary struct {
	Neighborhoods int
	Participants  int
	Workshops     int
	Sessions      int
	Presences     int
	Periods       int
	Skipped       int
}

// Importer writes dataset dumps into a store.
type Importer struct {
	store *store.Store
	log   *log.Logger
}

// New returns an importer writing to st.
func New(st *store.Store, logger *log.Logger) *Importer {
	return &Importer{
		store: st,
		log:   logger.WithComponent(log.ComponentImporter),
	}
}

// ImportFile loads one dataset dump from disk.
func (im *Importer) ImportFile(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	sum, err := im.ImportBytes(data)
	if err != nil {
		return sum, fmt.Errorf("importing dataset %s: %w", path, err)
	}
	im.log.Info("dataset imported",
		"path", path,
		"neighborhoods", sum.Neighborhoods,
		"participants", sum.Participants,
		"workshops", sum.Workshops,
		"sessions", sum.Sessions,
		"presences", sum.Presences,
		"periods", sum.Periods,
		"skipped", sum.Skipped,
	)
	return sum, nil
}

// ImportBytes loads one dataset dump. Rows missing their id (or a
// presence missing either reference) are skipped and counted, not
// fatal; dirty historical dumps should still load as far as they
// can.
func (im *Importer) ImportBytes(data []byte) (Summary, error) {
	var sum Summary
	if !gjson.ValidBytes(data) {
		return sum, fmt.Errorf("dataset is not valid JSON")
	}
	root := gjson.ParseBytes(data)

	var firstErr error
	fail := func(err error) bool {
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr != nil
	}

	arrayOf(root, "neighborhoods", "quartiers").
		ForEach(func(_, row gjson.Result) bool {
			id := row.Get("id").Int()
			if id == 0 {
				sum.Skipped++
				return true
			}
			err := im.store.UpsertNeighborhood(store.Neighborhood{
				ID:       id,
				City:     str(row, "city", "ville"),
				Name:     str(row, "name", "nom"),
				Priority: row.Get("priority").Bool() || row.Get("is_qpv").Bool(),
			})
			if fail(err) {
				return false
			}
			sum.Neighborhoods++
			return true
		})

	arrayOf(root, "participants").
		ForEach(func(_, row gjson.Result) bool {
			id := row.Get("id").Int()
			if id == 0 {
				sum.Skipped++
				return true
			}
			err := im.store.UpsertParticipant(store.Participant{
				ID:             id,
				LastName:       str(row, "last_name", "nom"),
				FirstName:      str(row, "first_name", "prenom"),
				City:           strPtr(row, "city", "ville"),
				Email:          strPtr(row, "email"),
				Phone:          strPtr(row, "phone", "telephone"),
				Gender:         strPtr(row, "gender", "genre"),
				BirthDate:      strPtr(row, "birth_date", "date_naissance"),
				PublicType:     str(row, "public_type", "type_public"),
				NeighborhoodID: intPtr(row, "neighborhood_id", "quartier_id"),
			})
			if fail(err) {
				return false
			}
			sum.Participants++
			return true
		})

	arrayOf(root, "workshops", "ateliers").
		ForEach(func(_, row gjson.Result) bool {
			id := row.Get("id").Int()
			if id == 0 {
				sum.Skipped++
				return true
			}
			err := im.store.UpsertWorkshop(store.Workshop{
				ID:                 id,
				Sector:             str(row, "sector", "secteur"),
				Name:               str(row, "name", "nom"),
				Kind:               kindOf(row, "kind", "type_atelier"),
				DefaultCapacity:    intValPtr(row, "default_capacity", "capacite_defaut"),
				DefaultDurationMin: intValPtr(row, "default_duration_min", "duree_defaut_minutes"),
				Deleted:            row.Get("deleted").Bool() || row.Get("is_deleted").Bool(),
			})
			if fail(err) {
				return false
			}
			sum.Workshops++
			return true
		})

	arrayOf(root, "sessions").
		ForEach(func(_, row gjson.Result) bool {
			id := row.Get("id").Int()
			workshopID := firstInt(row, "workshop_id", "atelier_id")
			if id == 0 || workshopID == 0 {
				sum.Skipped++
				return true
			}
			err := im.store.UpsertSession(store.Session{
				ID:               id,
				WorkshopID:       workshopID,
				Sector:           str(row, "sector", "secteur"),
				Kind:             kindOf(row, "kind", "session_type"),
				SessionDate:      strPtr(row, "session_date", "date_session"),
				StartTime:        strPtr(row, "start_time", "heure_debut"),
				EndTime:          strPtr(row, "end_time", "heure_fin"),
				Capacity:         intValPtr(row, "capacity", "capacite"),
				Status:           str(row, "status", "statut"),
				AppointmentDate:  strPtr(row, "appointment_date", "rdv_date"),
				AppointmentStart: strPtr(row, "appointment_start", "rdv_debut"),
				AppointmentEnd:   strPtr(row, "appointment_end", "rdv_fin"),
				Deleted:          row.Get("deleted").Bool() || row.Get("is_deleted").Bool(),
			})
			if fail(err) {
				return false
			}
			sum.Sessions++
			return true
		})

	var presences []store.Presence
	arrayOf(root, "presences").
		ForEach(func(_, row gjson.Result) bool {
			sessionID := row.Get("session_id").Int()
			participantID := row.Get("participant_id").Int()
			if sessionID == 0 || participantID == 0 {
				sum.Skipped++
				return true
			}
			presences = append(presences, store.Presence{
				ID:            row.Get("id").Int(),
				SessionID:     sessionID,
				ParticipantID: participantID,
				Motif:         strPtr(row, "motif"),
				MotifAutre:    strPtr(row, "motif_autre"),
				CreatedAt:     str(row, "created_at"),
			})
			return true
		})
	if firstErr == nil && len(presences) > 0 {
		if err := im.store.InsertPresences(presences); err != nil {
			firstErr = err
		} else {
			sum.Presences = len(presences)
		}
	}

	arrayOf(root, "periods", "periodes").
		ForEach(func(_, row gjson.Result) bool {
			id := row.Get("id").Int()
			if id == 0 {
				sum.Skipped++
				return true
			}
			err := im.store.UpsertPeriod(store.Period{
				ID:        id,
				Sector:    strPtr(row, "sector", "secteur"),
				Name:      str(row, "name", "nom"),
				StartDate: str(row, "start_date", "date_debut"),
				EndDate:   str(row, "end_date", "date_fin"),
				Deleted:   row.Get("deleted").Bool() || row.Get("is_deleted").Bool(),
			})
			if fail(err) {
				return false
			}
			sum.Periods++
			return true
		})

	return sum, firstErr
}

// arrayOf returns the first existing array among the key spellings.
func arrayOf(root gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := root.Get(k); v.IsArray() {
			return v
		}
	}
	return gjson.Result{}
}

func str(row gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := row.Get(k); v.Exists() && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func strPtr(row gjson.Result, keys ...string) *string {
	if s := str(row, keys...); s != "" {
		return &s
	}
	return nil
}

func firstInt(row gjson.Result, keys ...string) int64 {
	for _, k := range keys {
		if v := row.Get(k); v.Exists() && v.Int() != 0 {
			return v.Int()
		}
	}
	return 0
}

func intPtr(row gjson.Result, keys ...string) *int64 {
	if n := firstInt(row, keys...); n != 0 {
		return &n
	}
	return nil
}

func intValPtr(row gjson.Result, keys ...string) *int {
	if n := firstInt(row, keys...); n != 0 {
		v := int(n)
		return &v
	}
	return nil
}

// kindOf normalizes a workshop or session kind, defaulting to
// collective.
func kindOf(row gjson.Result, keys ...string) string {
	switch str(row, keys...) {
	case store.KindIndividual, "INDIVIDUEL", "individuel_mensuel":
		return store.KindIndividual
	default:
		return store.KindCollective
	}
}
