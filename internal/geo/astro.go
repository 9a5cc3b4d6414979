// Package geo computes solar sunrise/sunset times and resolves city
// names to coordinates.
package geo

import (
	"math"
	"time"
)

// solarAltitude is the sun altitude defining sunrise/sunset: the
// geometric horizon corrected for refraction and the solar radius.
const solarAltitude = -0.833

const degToRad = math.Pi / 180.0

// SunTimes returns sunrise and sunset for a position on the given
// date, expressed in the date's timezone. At latitudes where the sun
// never crosses the horizon the hour angle saturates and the two
// times collapse toward (or spread fully around) solar transit, which
// is why callers clamp latitude before getting here.
func SunTimes(lat, lon float64, date time.Time) (sunrise, sunset time.Time) {
	// The NOAA sunrise equation expects the Julian day at noon.
	jd := toJulianDay(date) + 0.5
	n := jd - 2451545.0 + 0.0008

	// Mean solar time at the observer's longitude.
	jStar := n - lon/360.0

	// Solar mean anomaly and equation of center.
	m := math.Mod(357.5291+0.98560028*jStar, 360.0)
	mRad := m * degToRad
	center := 1.9148*math.Sin(mRad) + 0.02*math.Sin(2*mRad) + 0.0003*math.Sin(3*mRad)

	// Ecliptic longitude and solar transit.
	lambda := math.Mod(m+center+180+102.9372, 360.0)
	lambdaRad := lambda * degToRad
	jTransit := 2451545.0 + jStar + 0.0053*math.Sin(mRad) - 0.0069*math.Sin(2*lambdaRad)

	// Declination of the sun.
	dec := math.Asin(math.Sin(lambdaRad) * math.Sin(23.44*degToRad))

	// Hour angle for the sunrise/sunset altitude.
	latRad := lat * degToRad
	cosOmega := (math.Sin(solarAltitude*degToRad) - math.Sin(latRad)*math.Sin(dec)) /
		(math.Cos(latRad) * math.Cos(dec))
	if cosOmega > 1 {
		cosOmega = 1
	} else if cosOmega < -1 {
		cosOmega = -1
	}
	omega := math.Acos(cosOmega) / degToRad

	sunrise = julianToTime(jTransit-omega/360.0, date)
	sunset = julianToTime(jTransit+omega/360.0, date)
	return sunrise, sunset
}

// toJulianDay converts a date to Julian day number
func toJulianDay(t time.Time) float64 {
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
}

// julianToTime converts a Julian day to the corresponding instant,
// expressed in the reference date's timezone.
func julianToTime(jd float64, refDate time.Time) time.Time {
	unixTime := (jd - 2440587.5) * 86400.0
	return time.Unix(int64(unixTime), 0).In(refDate.Location())
}
