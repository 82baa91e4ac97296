package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactstats/internal/stats"
	"impactstats/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestWriteCSV(t *testing.T) {
	rows := []RowContext{
		{
			Participant: store.Participant{LastName: "Martin", FirstName: "Alice"},
			Session: store.Session{
				Kind:        store.KindCollective,
				SessionDate: strp("2024-03-04"),
			},
			Workshop: store.Workshop{Name: "Club ados", Sector: "jeunesse"},
		},
		{
			Participant: store.Participant{LastName: "Bernard", FirstName: "Paul"},
			Session: store.Session{
				Kind:        store.KindCollective,
				SessionDate: strp("2024-03-11"),
			},
			Workshop: store.Workshop{Name: "Club ados", Sector: "jeunesse"},
		},
	}

	var buf bytes.Buffer
	err := WriteCSV(&buf, nil, rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"Nom,Prénom,Nom atelier,Secteur atelier,Date session,Type session",
		lines[0])
	assert.Equal(t,
		"Martin,Alice,Club ados,jeunesse,2024-03-04,COLLECTIF",
		lines[1])
	assert.Equal(t,
		"Bernard,Paul,Club ados,jeunesse,2024-03-11,COLLECTIF",
		lines[2])
}

func TestWriteCSVQuotesCommas(t *testing.T) {
	rows := []RowContext{{
		Participant: store.Participant{LastName: "Martin, dit Momo"},
	}}
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"participant_nom"}, rows)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"Martin, dit Momo"`)
}

func TestBuildRows(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.UpsertWorkshop(store.Workshop{
		ID: 1, Sector: "jeunesse", Name: "Club ados",
		Kind: store.KindCollective,
	}))
	require.NoError(t, st.UpsertSession(store.Session{
		ID: 1, WorkshopID: 1, Kind: store.KindCollective,
		Status: store.StatusDone, SessionDate: strp("2024-03-11"),
	}))
	require.NoError(t, st.UpsertSession(store.Session{
		ID: 2, WorkshopID: 1, Kind: store.KindCollective,
		Status: store.StatusDone, SessionDate: strp("2024-03-04"),
	}))
	require.NoError(t, st.UpsertNeighborhood(store.Neighborhood{
		ID: 1, City: "Creil", Name: "Rouher", Priority: true,
	}))
	nid := int64(1)
	require.NoError(t, st.UpsertParticipant(store.Participant{
		ID: 101, LastName: "Martin", FirstName: "Alice",
		NeighborhoodID: &nid,
	}))
	require.NoError(t, st.InsertPresences([]store.Presence{
		{SessionID: 1, ParticipantID: 101},
		{SessionID: 2, ParticipantID: 101},
	}))

	engine := stats.NewEngine(st)
	rows, err := BuildRows(context.Background(), st, engine,
		stats.SystemActor{}, stats.Filters{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Chronological by session date, not by session id.
	assert.Equal(t, int64(2), rows[0].Session.ID)
	assert.Equal(t, int64(1), rows[1].Session.ID)
	assert.Equal(t, "Martin", rows[0].Participant.LastName)
	require.NotNil(t, rows[0].Neighborhood)
	assert.Equal(t, "Rouher", rows[0].Neighborhood.Name)
}

func TestBuildRowsRestricted(t *testing.T) {
	st := testStore(t)
	engine := stats.NewEngine(st)

	rows, err := BuildRows(context.Background(), st, engine,
		nil, stats.Filters{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
