package versioning

import (
	"fmt"
	"regexp"
	"strconv"
)

// APIVersion is a semantic version of the REST surface.
type APIVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer than other.
func (v APIVersion) Compare(other APIVersion) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	default:
		return sign(v.Patch - other.Patch)
	}
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	if n > 0 {
		return 1
	}
	return 0
}

var (
	V1_0_0 = APIVersion{Major: 1, Minor: 0, Patch: 0}
	V1_1_0 = APIVersion{Major: 1, Minor: 1, Patch: 0}
)

// CurrentVersion is what the server speaks when the client does not ask.
var CurrentVersion = V1_1_0

// MinimumSupportedVersion is the oldest version still served.
var MinimumSupportedVersion = V1_0_0

var versionPattern = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?$`)

// ParseVersion accepts "1", "1.1", "1.1.0" and the same with a leading "v".
func ParseVersion(raw string) (APIVersion, error) {
	m := versionPattern.FindStringSubmatch(raw)
	if m == nil {
		return APIVersion{}, fmt.Errorf("invalid version format: %s", raw)
	}

	parts := [3]int{}
	for i, s := range m[1:] {
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return APIVersion{}, fmt.Errorf("invalid version component %q: %w", s, err)
		}
		parts[i] = n
	}
	return APIVersion{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// IsSupported reports whether the server can answer requests pinned to v.
func IsSupported(v APIVersion) bool {
	return v.Compare(MinimumSupportedVersion) >= 0 && v.Compare(CurrentVersion) <= 0
}

// Feature names a capability and the version that introduced it.
type Feature struct {
	Name         string     `json:"name"`
	IntroducedIn APIVersion `json:"introduced_in"`
}

// Features lists what each API version exposes.
var Features = []Feature{
	{Name: "users", IntroducedIn: V1_0_0},
	{Name: "chats", IntroducedIn: V1_0_0},
	{Name: "messages", IntroducedIn: V1_0_0},
	{Name: "scheduled_messages", IntroducedIn: V1_1_0},
	{Name: "translation", IntroducedIn: V1_1_0},
}

// Supports reports whether feature exists in version v. Unknown features
// are never supported.
func Supports(v APIVersion, feature string) bool {
	for _, f := range Features {
		if f.Name == feature {
			return v.Compare(f.IntroducedIn) >= 0
		}
	}
	return false
}

// SupportedRange renders the served range for response headers.
func SupportedRange() string {
	return MinimumSupportedVersion.String() + " - " + CurrentVersion.String()
}
