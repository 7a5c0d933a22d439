package timezone

import (
	"sort"
	"strconv"
)

// ZipRange maps an inclusive range of five digit zip codes to a UTC offset
// in hours and a DST flag (1 when the area observes daylight saving time).
type ZipRange struct {
	Start  int
	End    int
	Offset int
	DST    int
}

// ZoneLookup returns the static timezone entry for a zip code.
type ZoneLookup func(zip string) (ZipRange, bool)

// prefix builds a range covering every zip from the three digit prefix lo
// through hi.
func prefix(lo, hi, offset, dst int) ZipRange {
	return ZipRange{Start: lo * 100, End: hi*100 + 99, Offset: offset, DST: dst}
}

// zipRanges is sorted by Start and has no overlaps. Prefixes that straddle a
// timezone line are assigned to the zone most of their population lives in.
var zipRanges = []ZipRange{
	prefix(5, 5, -5, 1),      // NY (Holtsville IRS)
	prefix(6, 9, -4, 0),      // PR, VI
	prefix(10, 27, -5, 1),    // MA
	prefix(28, 29, -5, 1),    // RI
	prefix(30, 38, -5, 1),    // NH
	prefix(39, 49, -5, 1),    // ME
	prefix(50, 59, -5, 1),    // VT
	prefix(60, 69, -5, 1),    // CT
	prefix(70, 89, -5, 1),    // NJ
	prefix(100, 149, -5, 1),  // NY
	prefix(150, 196, -5, 1),  // PA
	prefix(197, 199, -5, 1),  // DE
	prefix(200, 205, -5, 1),  // DC
	prefix(206, 219, -5, 1),  // MD
	prefix(220, 246, -5, 1),  // VA
	prefix(247, 268, -5, 1),  // WV
	prefix(270, 289, -5, 1),  // NC
	prefix(290, 299, -5, 1),  // SC
	prefix(300, 319, -5, 1),  // GA
	prefix(320, 323, -5, 1),  // FL
	prefix(324, 325, -6, 1),  // FL panhandle
	prefix(326, 349, -5, 1),  // FL
	prefix(350, 369, -6, 1),  // AL
	prefix(370, 372, -6, 1),  // TN middle
	prefix(373, 374, -5, 1),  // TN Chattanooga
	prefix(375, 376, -6, 1),  // TN Memphis
	prefix(377, 379, -5, 1),  // TN Knoxville
	prefix(380, 385, -6, 1),  // TN west
	prefix(386, 397, -6, 1),  // MS
	prefix(398, 399, -5, 1),  // GA
	prefix(400, 418, -5, 1),  // KY east
	prefix(420, 427, -6, 1),  // KY west
	prefix(430, 459, -5, 1),  // OH
	prefix(460, 462, -5, 1),  // IN
	prefix(463, 464, -6, 1),  // IN northwest
	prefix(465, 479, -5, 1),  // IN
	prefix(480, 497, -5, 1),  // MI
	prefix(498, 499, -6, 1),  // MI upper peninsula
	prefix(500, 528, -6, 1),  // IA
	prefix(530, 549, -6, 1),  // WI
	prefix(550, 567, -6, 1),  // MN
	prefix(570, 576, -6, 1),  // SD east
	prefix(577, 577, -7, 1),  // SD west
	prefix(580, 588, -6, 1),  // ND
	prefix(590, 599, -7, 1),  // MT
	prefix(600, 629, -6, 1),  // IL
	prefix(630, 658, -6, 1),  // MO
	prefix(660, 679, -6, 1),  // KS
	prefix(680, 689, -6, 1),  // NE east
	prefix(690, 693, -7, 1),  // NE west
	prefix(700, 714, -6, 1),  // LA
	prefix(716, 729, -6, 1),  // AR
	prefix(730, 749, -6, 1),  // OK
	prefix(750, 797, -6, 1),  // TX
	prefix(798, 799, -7, 1),  // TX El Paso
	prefix(800, 816, -7, 1),  // CO
	prefix(820, 831, -7, 1),  // WY
	prefix(832, 834, -7, 1),  // ID south
	prefix(835, 838, -8, 1),  // ID north
	prefix(840, 847, -7, 1),  // UT
	prefix(850, 865, -7, 0),  // AZ
	prefix(870, 884, -7, 1),  // NM
	prefix(889, 898, -8, 1),  // NV
	prefix(900, 961, -8, 1),  // CA
	prefix(967, 968, -10, 0), // HI
	prefix(969, 969, 10, 0),  // GU, MP
	prefix(970, 979, -8, 1),  // OR
	prefix(980, 994, -8, 1),  // WA
	prefix(995, 999, -9, 1),  // AK
}

// LookupZip finds the static timezone entry for zip. Only the first five
// characters are considered so ZIP+4 input is accepted.
func LookupZip(zip string) (ZipRange, bool) {
	if len(zip) < 5 {
		return ZipRange{}, false
	}

	for _, c := range zip[:5] {
		if c < '0' || c > '9' {
			return ZipRange{}, false
		}
	}
	n, _ := strconv.Atoi(zip[:5])

	i := sort.Search(len(zipRanges), func(i int) bool {
		return zipRanges[i].End >= n
	})
	if i < len(zipRanges) && zipRanges[i].Start <= n {
		return zipRanges[i], true
	}

	return ZipRange{}, false
}
