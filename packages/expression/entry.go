package expression

import (
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/cache"
)

// General is the set used when test data is loaded: dates, rx, testdata
// references and the builtin helpers.
func General(loader Loader, clock func() time.Time) Set {
	set := Builtins(clock).Merge(Dates(clock)).Merge(Regex())
	if loader != nil {
		set = set.Merge(TestData(loader))
	}
	return set
}

// CacheMode resolves references to bodies of earlier steps.
func CacheMode(snapshot cache.Snapshot) Set {
	return Cache(snapshot)
}

// HeadersCacheMode resolves references to headers of earlier steps.
func HeadersCacheMode(snapshot cache.Snapshot) Set {
	return CacheHeaders(snapshot)
}
