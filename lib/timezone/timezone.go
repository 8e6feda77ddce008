package timezone

import (
	"time"

	// the container images this runs in do not ship a zoneinfo database
	_ "time/tzdata"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Atlantic/Reykjavik")
	if err != nil {
		panic(err)
	}
}

// force the timezone to match the remote attendance system so that
// date arithmetic based on <time.Time>.Year()/Month()/Day() lines up
// with the dd.MM.yyyy strings it renders, wherever our servers run
func Now() time.Time {
	return time.Now().In(Location)
}
