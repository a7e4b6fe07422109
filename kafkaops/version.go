package kafkaops

import (
	"strconv"
	"strings"

	"github.com/twmb/franz-go/pkg/kversion"
)

type release struct {
	major, minor, patch int
	versions            func() *kversion.Versions
}

// releases is ordered, 0.x releases are told apart by their third component.
var releases = []release{
	{0, 8, 0, kversion.V0_8_0},
	{0, 8, 1, kversion.V0_8_1},
	{0, 8, 2, kversion.V0_8_2},
	{0, 9, 0, kversion.V0_9_0},
	{0, 10, 0, kversion.V0_10_0},
	{0, 10, 1, kversion.V0_10_1},
	{0, 10, 2, kversion.V0_10_2},
	{0, 11, 0, kversion.V0_11_0},
	{1, 0, 0, kversion.V1_0_0},
	{1, 1, 0, kversion.V1_1_0},
	{2, 0, 0, kversion.V2_0_0},
	{2, 1, 0, kversion.V2_1_0},
	{2, 2, 0, kversion.V2_2_0},
	{2, 3, 0, kversion.V2_3_0},
	{2, 4, 0, kversion.V2_4_0},
	{2, 5, 0, kversion.V2_5_0},
	{2, 6, 0, kversion.V2_6_0},
	{2, 7, 0, kversion.V2_7_0},
	{2, 8, 0, kversion.V2_8_0},
	{3, 0, 0, kversion.V3_0_0},
	{3, 1, 0, kversion.V3_1_0},
	{3, 2, 0, kversion.V3_2_0},
	{3, 3, 0, kversion.V3_3_0},
	{3, 4, 0, kversion.V3_4_0},
	{3, 5, 0, kversion.V3_5_0},
	{3, 6, 0, kversion.V3_6_0},
	{3, 7, 0, kversion.V3_7_0},
	{3, 8, 0, kversion.V3_8_0},
	{3, 9, 0, kversion.V3_9_0},
	{4, 0, 0, kversion.V4_0_0},
	{4, 1, 0, kversion.V4_1_0},
}

func (r release) after(major, minor, patch int) bool {
	if r.major != major {
		return r.major > major
	}
	if r.minor != minor {
		return r.minor > minor
	}
	return r.patch > patch
}

// parseVersion caps the request versions kgo may negotiate, for brokers that
// misreport their ApiVersions. major[.minor[.patch[.build]]] maps to the newest
// known release not above it, so 2.8.1 is 2.8.0 and 0.10.0.1 is 0.10.0.
// Versions past the newest known release get the newest one. Malformed
// versions and versions before 0.8.0 return nil.
func parseVersion(version string) *kversion.Versions {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ".")
	if len(parts) > 4 {
		return nil
	}

	var nums [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil
		}
		nums[i] = n
	}

	var found *release
	for i := range releases {
		if releases[i].after(nums[0], nums[1], nums[2]) {
			break
		}
		found = &releases[i]
	}

	if found == nil {
		return nil
	}

	return found.versions()
}
