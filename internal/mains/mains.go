// Package mains works out the local electrical mains frequency from the
// system timezone. The hum notch uses it when no frequency is configured.
package mains

import (
	"fmt"
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// DefaultFrequency is used when the timezone gives no country, 50 Hz being the more common grid
const DefaultFrequency = 50

// Detection is the outcome of a mains frequency lookup
type Detection struct {
	Frequency int    // Hz, 50 or 60
	Timezone  string // IANA name, empty when the local timezone is unknown
	Country   string // empty when the timezone maps to no country
}

// Source describes where the frequency came from, for logs and reports
func (d Detection) Source() string {
	switch {
	case d.Country != "":
		return fmt.Sprintf("%s (%s)", d.Timezone, d.Country)
	case d.Timezone != "":
		return d.Timezone + " (no country, default)"
	default:
		return "default"
	}
}

// Detect looks up the mains frequency for the local timezone
func Detect() Detection {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return Detection{Frequency: DefaultFrequency}
	}
	return ForTimezone(timezone)
}

// ForTimezone looks up the mains frequency for an IANA timezone
func ForTimezone(timezone string) Detection {
	d := Detection{Frequency: DefaultFrequency, Timezone: timezone}
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return d
	}

	tzMap, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return d
	}
	country, err := tzMap.GetCountry(timezone)
	if err != nil {
		return d
	}

	d.Country = country
	if _, ok := sixtyHertz[country]; ok {
		d.Frequency = 60
	}
	return d
}

// sixtyHertz lists countries on 60 Hz grids. Japan is split by region and
// is left at 50 Hz (Tokyo). Brazil is mixed, mostly 60 Hz.
var sixtyHertz = map[string]struct{}{
	"United States": {}, "Canada": {}, "Mexico": {},

	"Belize": {}, "Costa Rica": {}, "El Salvador": {}, "Guatemala": {},
	"Honduras": {}, "Nicaragua": {}, "Panama": {},

	"Bahamas": {}, "Barbados": {}, "Cayman Islands": {}, "Cuba": {},
	"Dominican Republic": {}, "Haiti": {}, "Jamaica": {}, "Puerto Rico": {},
	"Trinidad and Tobago": {}, "U.S. Virgin Islands": {},

	"Brazil": {}, "Colombia": {}, "Ecuador": {}, "Guyana": {}, "Peru": {},
	"Suriname": {}, "Venezuela": {},

	"South Korea": {}, "Taiwan": {}, "Philippines": {}, "Saudi Arabia": {},

	"Guam": {}, "American Samoa": {}, "Marshall Islands": {}, "Micronesia": {}, "Palau": {},
}
