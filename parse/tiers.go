package parse

// Per stop detail, as found JSON encoded inside a feature property.
type StopDetail struct {
	Code string `json:"code"`

	EstArr     string `json:"estarr"`
	SchArr     string `json:"scharr"`
	PostArr    string `json:"postarr"`
	EstArrCmnt string `json:"estarrcmnt"`

	EstDep     string `json:"estdep"`
	SchDep     string `json:"schdep"`
	PostDep    string `json:"postdep"`
	EstDepCmnt string `json:"estdepcmnt"`

	PostCmnt string `json:"postcmnt"`
}

// One source of a timestamp, with the status text that goes with it.
type Tier struct {
	Name   string
	Time   func(*StopDetail) string
	Status func(*StopDetail) string
}

type Resolution struct {
	Tier   string
	Time   string
	Status string
}

// Arrival sources in order of preference. The scheduled tier pairs
// with the posted comment, same as the posted tier. This mirrors what
// the feed's own map shows.
var ArrivalTiers = []Tier{
	{
		Name:   "estimated",
		Time:   func(d *StopDetail) string { return d.EstArr },
		Status: func(d *StopDetail) string { return d.EstArrCmnt },
	},
	{
		Name:   "scheduled",
		Time:   func(d *StopDetail) string { return d.SchArr },
		Status: func(d *StopDetail) string { return d.PostCmnt },
	},
	{
		Name:   "posted",
		Time:   func(d *StopDetail) string { return d.PostArr },
		Status: func(d *StopDetail) string { return d.PostCmnt },
	},
}

// Departure sources in order of preference. Departures carry no
// status of their own.
var DepartureTiers = []Tier{
	{Name: "estimated", Time: func(d *StopDetail) string { return d.EstDep }},
	{Name: "scheduled", Time: func(d *StopDetail) string { return d.SchDep }},
	{Name: "posted", Time: func(d *StopDetail) string { return d.PostDep }},
}

// Returns the first tier with a non-empty time.
func Resolve(detail *StopDetail, tiers []Tier) (Resolution, bool) {
	for _, tier := range tiers {
		t := tier.Time(detail)
		if t == "" {
			continue
		}
		res := Resolution{Tier: tier.Name, Time: t}
		if tier.Status != nil {
			res.Status = tier.Status(detail)
		}
		return res, true
	}
	return Resolution{}, false
}
