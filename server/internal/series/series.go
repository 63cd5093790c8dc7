package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/statuspulse/statuspulse/pkg/types"
)

// ErrUnknownProfile is returned by ParseProfile for names outside the profile set.
var ErrUnknownProfile = errors.New("series: unknown interval profile")

// Profile names.
const (
	Profile1Hour = "1hr"
	Profile1Day  = "1day"
	Profile7Days = "7day"

	DefaultProfile = Profile1Day
)

// Profile fixes the bucket width and bucket count of a series.
type Profile struct {
	Name  string
	Width time.Duration
	Count int
}

// Window returns the total lookback span covered by p.
func (p Profile) Window() time.Duration {
	return p.Width * time.Duration(p.Count)
}

func (p Profile) valid() bool {
	return p.Width > 0 && p.Count > 0
}

// profiles is ordered from the shortest window to the longest.
var profiles = []Profile{
	{Name: Profile1Hour, Width: 2 * time.Minute, Count: 30},
	{Name: Profile1Day, Width: 60 * time.Minute, Count: 24},
	{Name: Profile7Days, Width: 360 * time.Minute, Count: 28},
}

// Profiles returns every known profile, shortest window first.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// ParseProfile looks up a profile by name.
func ParseProfile(name string) (Profile, error) {
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w %q", ErrUnknownProfile, name)
}

// MustProfile is like ParseProfile but panics on an unknown name. Use it only
// with the compile-time constants above.
func MustProfile(name string) Profile {
	p, err := ParseProfile(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Normalize sums data into p.Count buckets tiling [end-p.Window(), end).
//
// Bucket i starts at end-p.Window()+i*p.Width, so the final bucket covers
// [end-p.Width, end). A sample exactly on a boundary lands in the later bucket.
// Samples before the window or at/after end are dropped. Input order does not
// matter and data is not modified.
//
// Normalize panics if p is not a valid profile.
func Normalize(data []types.Datum, p Profile, end time.Time) []types.Datum {
	if !p.valid() {
		panic(fmt.Sprintf("series: invalid profile %+v", p))
	}

	end = end.UTC()
	start := end.Add(-p.Window())

	buckets := make([]types.Datum, p.Count)
	for i := range buckets {
		buckets[i].Timestamp = start.Add(time.Duration(i) * p.Width)
	}

	for _, d := range data {
		idx, ok := bucketIndex(d.Timestamp, start, p)
		if !ok {
			continue
		}
		b := &buckets[idx]
		b.OK = types.AddCounts(b.OK, nonNegative(d.OK))
		b.Warning = types.AddCounts(b.Warning, nonNegative(d.Warning))
		b.Error = types.AddCounts(b.Error, nonNegative(d.Error))
	}
	return buckets
}

// bucketIndex returns floor((t-start)/p.Width) and whether it is in range.
func bucketIndex(t, start time.Time, p Profile) (int, bool) {
	offset := t.Sub(start)
	if offset < 0 {
		return 0, false
	}
	idx := offset / p.Width
	if idx >= time.Duration(p.Count) {
		return 0, false
	}
	return int(idx), true
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
