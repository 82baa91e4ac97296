package stats

// Permission codes granting multi-sector visibility. Holding any one
// of them is enough.
const (
	PermAllSectors    = "scope:all_sectors"
	PermStatsViewAll  = "stats:view_all"
	PermImpactViewAll = "statsimpact:view_all"
)

// Actor is whoever is asking for statistics. Implementations come
// from the caller (a web session, a batch job); the engine never
// reads ambient identity state.
type Actor interface {
	// HasPermission reports whether the actor holds the named
	// permission code.
	HasPermission(code string) bool
	// AssignedSector returns the actor's single assigned sector,
	// or "" when none is assigned.
	AssignedSector() string
}

// Scope is the effective sector restriction applied to every query.
// An unrestricted scope has Restricted == false and Sector == "".
type Scope struct {
	// Restricted means the actor may not see any sector at all.
	// Analyzers short-circuit to zero results before querying.
	Restricted bool
	// Sector is the single visible sector, "" when unrestricted.
	Sector string
}

// ResolveScope determines the visible sector for an actor:
//   - full-access actors keep the requested sector filter (or see
//     everything when no filter is given);
//   - single-sector actors are forced onto their assigned sector,
//     ignoring the requested filter;
//   - actors with neither are restricted outright.
func ResolveScope(actor Actor, requestedSector string) Scope {
	if actor == nil {
		return Scope{Restricted: true}
	}
	for _, code := range []string{
		PermAllSectors, PermStatsViewAll, PermImpactViewAll,
	} {
		if actor.HasPermission(code) {
			return Scope{Sector: requestedSector}
		}
	}
	if sector := actor.AssignedSector(); sector != "" {
		return Scope{Sector: sector}
	}
	return Scope{Restricted: true}
}

// SystemActor has full multi-sector access. Batch reporting and
// export jobs run as this actor.
type SystemActor struct{}

func (SystemActor) HasPermission(string) bool { return true }
func (SystemActor) AssignedSector() string    { return "" }
